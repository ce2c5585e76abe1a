package domain

type SendMessageCommand struct {
	SenderID   UserID `validate:"required,max=64,excludesall=:"`
	ReceiverID UserID `validate:"required,max=64,excludesall=:"`
	Body       string `validate:"required"`
	ReplyTo    *MessageID
}

type FetchConversationCommand struct {
	ViewerID UserID `validate:"required,max=64,excludesall=:"`
	OtherID  UserID `validate:"required,max=64,excludesall=:"`
}

type MarkReadCommand struct {
	IDs []MessageID
}

type UpsertUserCommand struct {
	ID   UserID `validate:"required,max=64,excludesall=:"`
	Name string `validate:"required,max=100"`
}
