package dto

// CourseQuery filters the course catalog.
type CourseQuery struct {
	Search   string `query:"search"`
	Category string `query:"category"`
	Level    string `query:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	Page     int    `query:"page" validate:"omitempty,gte=1"`
	Limit    int    `query:"limit" validate:"omitempty,gte=1,lte=100"`
}

// CourseInput validates course create and update payloads.
type CourseInput struct {
	Title       string   `json:"title" validate:"required,min=3,max=200"`
	Description string   `json:"description,omitempty" validate:"omitempty,max=5000"`
	Category    string   `json:"category,omitempty"`
	Level       string   `json:"level,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Duration    int      `json:"duration,omitempty" validate:"omitempty,gte=0"`
	Thumbnail   string   `json:"thumbnail,omitempty" validate:"omitempty,url"`
	IsPublished *bool    `json:"isPublished,omitempty"`
	Tags        []string `json:"tags,omitempty" validate:"omitempty,dive,required"`
}

// CategoryInput validates category create and update payloads.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,min=2,max=80"`
	Description string `json:"description,omitempty" validate:"omitempty,max=500"`
	Color       string `json:"color,omitempty" validate:"omitempty,hexcolor"`
	IsActive    *bool  `json:"isActive,omitempty"`
}

// ContentInput validates content create and update payloads.
type ContentInput struct {
	Course      string `json:"course" validate:"required"`
	Title       string `json:"title" validate:"required,min=2,max=200"`
	Description string `json:"description,omitempty" validate:"omitempty,max=5000"`
	Type        string `json:"type" validate:"required,oneof=video audio document text quiz assignment image link"`
	Duration    int    `json:"duration,omitempty" validate:"omitempty,gte=0"`
	Order       int    `json:"order" validate:"gte=0"`
	URL         string `json:"url,omitempty" validate:"omitempty,url"`
	FileURL     string `json:"fileUrl,omitempty"`
	Body        string `json:"content,omitempty"`
	IsPublished *bool  `json:"isPublished,omitempty"`
}

// UserUpdateRequest validates admin user edits.
type UserUpdateRequest struct {
	Name     string `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=admin instructor student"`
	IsActive *bool  `json:"isActive,omitempty"`
}
