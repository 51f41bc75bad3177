package domain

// Genre is an entry of the genre catalog, keyed by its code.
type Genre struct {
	Code string `json:"code" db:"code" validate:"required,max=100"`
	Name string `json:"name" db:"name" validate:"required,max=255"`
}

// GenreSyncItem accepts both the {code,name} and the {value,label} shapes
// sent by the mobile client.
type GenreSyncItem struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Value string `json:"value"`
	Label string `json:"label"`
}

// Normalize folds the value/label aliases into a Genre.
func (i GenreSyncItem) Normalize() Genre {
	g := Genre{Code: i.Code, Name: i.Name}
	if g.Code == "" {
		g.Code = i.Value
	}
	if g.Name == "" {
		g.Name = i.Label
	}
	return g
}

// GenreSyncResult reports what happened to one synced genre.
type GenreSyncResult struct {
	Status  string         `json:"status"`
	Code    string         `json:"code,omitempty"`
	Name    string         `json:"name,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    *GenreSyncItem `json:"data,omitempty"`
}

const (
	GenreSyncCreated = "created"
	GenreSyncUpdated = "updated"
	GenreSyncError   = "error"
)
