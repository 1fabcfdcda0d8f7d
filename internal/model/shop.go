package model

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID       ID     `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Deposit  Money  `json:"deposit"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Product struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Price       Money  `json:"price"`
	Inventory   int    `json:"inventory"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// UnknownProductName is shown for orders whose product has been deleted.
const UnknownProductName = "Unknown"

type Order struct {
	ID          ID        `json:"id"`
	UserID      ID        `json:"user_id"`
	ProductID   ID        `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	OrderDate   time.Time `json:"order_date"`
}
