package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix  = "user:%d"
	EntryKeyPrefix = "entry:%d"
)

const (
	UserTTL  = 5 * time.Minute
	EntryTTL = 10 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// EntryKey is the cache key for a single entry row. Counter and status
// writes invalidate it.
func EntryKey(entryID uint) string {
	return fmt.Sprintf(EntryKeyPrefix, entryID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateEntry(ctx context.Context, entryID uint) {
	Invalidate(ctx, EntryKey(entryID))
}
