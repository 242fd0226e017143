package securestore

import "time"

// SecureItemModel is one encrypted key-value pair.
type SecureItemModel struct {
	Key        string `gorm:"column:item_key;primaryKey;size:128"`
	Nonce      []byte `gorm:"not null"`
	Ciphertext []byte `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (SecureItemModel) TableName() string {
	return "secure_items"
}
