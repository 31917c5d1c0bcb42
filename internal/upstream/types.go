package upstream

// Event is a single listing as returned by the ticketing API. Read-only input;
// all timestamps arrive as strings and are parsed downstream.
type Event struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	Image       *Image     `json:"image"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
	StartsAt    string     `json:"starts_at"`
	EndsAt      string     `json:"ends_at"`
	Venue       *Venue     `json:"venue"`
	Locality    *Locality  `json:"locality"`
	Organiser   *Organiser `json:"organiser"`
	Categories  []Category `json:"categories"`
	Tickets     []Ticket   `json:"tickets"`
}

type Image struct {
	URL string `json:"url"`
}

type Venue struct {
	Name     string  `json:"name"`
	Address1 string  `json:"address_1"`
	Address2 string  `json:"address_2"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

// Locality carries the three geographic levels the API exposes. Any of them
// may be empty on real listings.
type Locality struct {
	Country  string `json:"country"`
	Province string `json:"province"`
	City     string `json:"city"`
}

type Organiser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Category struct {
	Name string `json:"name"`
}

type Ticket struct {
	Price    float64 `json:"price"`
	SoldOut  bool    `json:"sold_out"`
	Donation bool    `json:"donation"`
}

// Page is one page of the listings endpoint.
type Page struct {
	Events       []Event `json:"events"`
	PageSize     int     `json:"page_size"`
	TotalPages   int     `json:"total_pages"`
	TotalRecords int     `json:"total_records"`
	Status       int     `json:"status"`
}
