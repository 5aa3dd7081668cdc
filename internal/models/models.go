package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrValidation marks model-level validation failures so handlers can map
// them to 422 instead of letting them surface as server faults.
var ErrValidation = errors.New("validation")

var emailRegex = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type User struct {
	ID          uint    `gorm:"column:user_id;primaryKey;autoIncrement" json:"user_id"`
	UserName    string  `gorm:"size:150;uniqueIndex;not null"           json:"user_name"`
	Email       string  `gorm:"size:150;uniqueIndex;not null"           json:"email"`
	Password    string  `gorm:"size:200;not null"                       json:"-"`
	Role        string  `gorm:"size:50;not null"                        json:"role"`
	PhoneNumber string  `gorm:"size:20;not null"                        json:"phone_number"`
	Orders      []Order `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string { return "users" }

// BeforeSave runs on create and update, so PATCHed fields are re-validated
// the same way as freshly created ones.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = strings.ToLower(u.Email)
	if !emailRegex.MatchString(u.Email) {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if len(u.PhoneNumber) < 10 || len(u.PhoneNumber) > 15 {
		return fmt.Errorf("%w: phone number must be between 10 and 15 characters", ErrValidation)
	}
	if u.Role != RoleCustomer && u.Role != RoleAdmin {
		return fmt.Errorf("%w: role must be %q or %q", ErrValidation, RoleCustomer, RoleAdmin)
	}
	return nil
}

// Kind names one of the five catalog tables. The tables are structurally
// identical, so a single CatalogItem struct is scoped to the right table
// through Kind.Table().
type Kind string

const (
	KindBeamBlock   Kind = "beamblock"
	KindHollowBlock Kind = "hollowblock"
	KindPavingBlock Kind = "pavingblock"
	KindRoadKerb    Kind = "roadkerb"
	KindService     Kind = "service"
)

var Kinds = []Kind{KindBeamBlock, KindHollowBlock, KindPavingBlock, KindRoadKerb, KindService}

var kindLabels = map[Kind]string{
	KindBeamBlock:   "BeamBlock",
	KindHollowBlock: "HollowBlock",
	KindPavingBlock: "PavingBlock",
	KindRoadKerb:    "RoadKerb",
	KindService:     "Service",
}

func (k Kind) Valid() bool { return kindLabels[k] != "" }

func (k Kind) Table() string { return string(k) + "s" }

func (k Kind) Label() string { return kindLabels[k] }

// RefField is the wire name for a reference to this kind, e.g. "beamblock_id".
func (k Kind) RefField() string { return string(k) + "_id" }

type CatalogItem struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Price       float64 `gorm:"not null"                 json:"price"`
	ImageURL    *string `gorm:"size:200"                 json:"image_url"`
	Description *string `gorm:"type:text"                json:"description"`
}

type Gallery struct {
	ID       uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	ImageURL *string `gorm:"size:200"                 json:"image_url"`
}

func (Gallery) TableName() string { return "gallery" }

type Order struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint           `gorm:"index;not null"           json:"user_id"`
	OrderDate  time.Time      `gorm:"not null"                 json:"order_date"`
	TotalPrice float64        `gorm:"not null"                 json:"total_price"`
	Products   []OrderProduct `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"order_products"`
}

func (Order) TableName() string { return "orders" }

// OrderProduct is one order line pointing at exactly one catalog item.
// Stored as a tagged reference instead of five nullable foreign keys; the
// transport layer keeps the old five-field wire format.
type OrderProduct struct {
	ID      uint `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID uint `gorm:"index;not null"           json:"order_id"`
	Kind    Kind `gorm:"size:50;not null"         json:"kind"`
	ItemID  uint `gorm:"not null"                 json:"item_id"`
}

func (OrderProduct) TableName() string { return "order_products" }

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}, &Gallery{}, &Order{}, &OrderProduct{}); err != nil {
		return err
	}
	for _, k := range Kinds {
		if err := db.Table(k.Table()).AutoMigrate(&CatalogItem{}); err != nil {
			return err
		}
	}
	return nil
}
