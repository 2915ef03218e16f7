package user

type User struct {
	Id          int
	Uid         string
	Username    string
	DisplayName string
	// Currency is the ISO code every amount of this user is denominated in.
	Currency string
}
