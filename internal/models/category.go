package models

import "time"

// Category represents a node in the category forest. Categories form a
// parent/child tree (no cycles); the UI uses at most three levels
// (root -> subcategory -> leaf) but the model does not enforce a depth cap.
type Category struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name         string    `json:"name" gorm:"size:100;not null"`
	NameEN       *string   `json:"nameEn,omitempty" gorm:"column:name_en;size:100"`
	Slug         string    `json:"slug" gorm:"size:100;not null;uniqueIndex"`
	ParentID     *uint     `json:"parentId,omitempty" gorm:"index"`
	Level        int       `json:"level" gorm:"not null;default:1"`
	DisplayOrder int       `json:"displayOrder" gorm:"not null;default:0"`
	IsVisible    bool      `json:"isVisible" gorm:"not null;default:true"`
	Description  *string   `json:"description,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName returns the table name for the Category model
func (Category) TableName() string {
	return "categories"
}

// CategoryNode is a category with its children resolved, for tree responses.
type CategoryNode struct {
	Category
	Children []*CategoryNode `json:"children,omitempty"`
}

type CategoryResponse struct {
	Success bool      `json:"success"`
	Data    *Category `json:"data"`
	Message *string   `json:"message,omitempty"`
}

type CategoryListResponse struct {
	Success bool       `json:"success"`
	Data    []Category `json:"data"`
}

type CategoryTreeResponse struct {
	Success bool            `json:"success"`
	Data    []*CategoryNode `json:"data"`
}
