package queue

import (
	"context"
	"errors"
)

// directoryDeleter is implemented by backends that can drop available items
// of one directory in a single atomic step.
type directoryDeleter interface {
	DeleteByDirectory(ctx context.Context, directory string, all bool) (int, error)
}

// RemoveByDirectory deletes available items whose payload directory matches.
// Only the oldest match is deleted unless all is set. Items claimed by a
// worker are never touched.
//
// Backends with a keyed delete are used directly. Any other ExportQueue gets a
// linear scan that claims every available item and releases the non-matching
// ones; concurrent callers of that scan can hide items from each other.
func RemoveByDirectory(ctx context.Context, q ExportQueue, directory string, all bool) (int, error) {
	if d, ok := q.(directoryDeleter); ok {
		return d.DeleteByDirectory(ctx, directory, all)
	}
	return removeByScan(ctx, q, directory, all)
}

func removeByScan(ctx context.Context, q ExportQueue, directory string, all bool) (removed int, err error) {
	var claimed []*Item
	defer func() {
		for _, item := range claimed {
			if item == nil {
				continue
			}
			if relErr := q.Release(context.WithoutCancel(ctx), item); relErr != nil {
				err = errors.Join(err, relErr)
			}
		}
	}()

	for {
		item, claimErr := q.Claim(ctx)
		if claimErr != nil {
			return removed, claimErr
		}
		if item == nil {
			break
		}
		claimed = append(claimed, item)
	}

	for i, item := range claimed {
		if item.Payload.Directory != directory || (removed > 0 && !all) {
			continue
		}
		if delErr := q.Delete(ctx, item); delErr != nil {
			return removed, delErr
		}
		claimed[i] = nil
		removed++
	}
	return removed, nil
}
