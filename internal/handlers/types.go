package handlers

// RedirectRequest is the request for a slug redirect.
type RedirectRequest struct {
	Slug string `doc:"The path segment to resolve" example:"docs" path:"slug"`
}

// RedirectResponse carries the resolved destination.
type RedirectResponse struct {
	Status   int
	Location string `doc:"The destination link" header:"Location"`
}

// InvalidateRequest names the slug whose cache entry is purged.
type InvalidateRequest struct {
	Slug string `doc:"The path segment whose cache entry is purged" example:"docs" path:"slug"`
}

// InvalidateResponse reports the purged cache key.
type InvalidateResponse struct {
	Body struct {
		Key    string `doc:"The computed cache key"             example:"d.go.example.s.docs" json:"key"`
		Purged bool   `doc:"Whether a removal was attempted" example:"true"                json:"purged"`
	}
}
