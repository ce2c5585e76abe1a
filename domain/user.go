package domain

// User is owned by the account service. This core only reads the display name
// and maintains the redundant online flag.
type User struct {
	ID     UserID
	Name   string
	Online bool
}

// Presence is the derived online state of a user as exposed to clients.
type Presence struct {
	UserID UserID
	Name   string
	Online bool
}
