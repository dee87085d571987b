package cache

import "fmt"

// UploadListKey is the listing cache key for one user at a given listing
// generation. An empty user id addresses the unfiltered listing.
func UploadListKey(userID string, gen int64) string {
	if userID == "" {
		return fmt.Sprintf("uploads:list:all:v%d", gen)
	}
	return fmt.Sprintf("uploads:list:user:%s:v%d", userID, gen)
}

// UploadListGenerationKey holds the counter that is bumped whenever the
// listing for userID changes.
func UploadListGenerationKey(userID string) string {
	if userID == "" {
		return "uploads:list:gen:all"
	}
	return fmt.Sprintf("uploads:list:gen:user:%s", userID)
}

func RateLimitKey(scope, clientID string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, clientID)
}
