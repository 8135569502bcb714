package entity

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleRetailer Role = "retailer"
	RoleUser     Role = "user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleRetailer, RoleUser:
		return true
	}
	return false
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}
