package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by outbound API calls. Leaderboard payloads for
// old rounds can be slow to render upstream.
var HTTPClient = &http.Client{
	Timeout: 60 * time.Second,
}
