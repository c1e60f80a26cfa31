package model

// List endpoints.
type (
	GetListsResponse struct {
		Lists []ListSummary `json:"lists"`
	}

	CreateListRequest struct {
		Name string `json:"listName"`
	}

	// MessageResponse is a generic server reply (also used for errors).
	MessageResponse struct {
		Message string `json:"message"`
	}
)

// Item endpoints.
type (
	AddItemRequest struct {
		ListId ListId `json:"listId"`
		Name   string `json:"itemName"`
	}

	// GetListItemsResponse is the GET /api/item/{listId} reply.
	GetListItemsResponse = ListSnapshot
)

// Auth endpoints.
type (
	LoginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	LoginResponse struct {
		Token      string `json:"token"`
		Name       string `json:"name"`
		ProfilePic string `json:"profilePic"`
	}

	RegisterRequest struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	Profile struct {
		Id        UserId `json:"_id"`
		Username  string `json:"username"`
		Email     string `json:"email"`
		AvatarUrl string `json:"profilePictureUrl"`
	}

	ProfileResponse struct {
		User Profile `json:"user"`
	}
)
