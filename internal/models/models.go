package models

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string `gorm:"unique;not null"          json:"email"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Confirmed    bool   `gorm:"not null;default:false"   json:"confirmed"`
	Avatar       string `json:"avatar,omitempty"`
	Role         string `gorm:"not null;default:user"    json:"role"`
}

type Contact struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"                            json:"id"`
	FirstName      string `gorm:"not null"                                            json:"first_name"`
	LastName       string `gorm:"not null"                                            json:"last_name"`
	Email          string `gorm:"not null;uniqueIndex:uniq_contact_owner_email"       json:"email"`
	Phone          string `gorm:"not null"                                            json:"phone"`
	Birthday       string `gorm:"not null"                                            json:"birthday"`
	AdditionalInfo string `json:"additional_info,omitempty"`
	UserID         uint   `gorm:"index;not null;uniqueIndex:uniq_contact_owner_email" json:"user_id"`
}
