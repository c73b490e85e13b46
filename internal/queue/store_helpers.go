package queue

import (
	"database/sql"
	"time"
)

const itemColumns = "id, payload_json, created_at, claimed_at, claim_token"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id        int64
		raw       string
		createdMS int64
		claimedMS sql.NullInt64
		token     sql.NullString
	)
	if err := scanner.Scan(&id, &raw, &createdMS, &claimedMS, &token); err != nil {
		return nil, err
	}
	payload, err := decodePayload(raw)
	if err != nil {
		return nil, err
	}
	item := &Item{
		ID:        id,
		Payload:   payload,
		CreatedAt: time.UnixMilli(createdMS).UTC(),
		token:     token.String,
	}
	if claimedMS.Valid {
		claimed := time.UnixMilli(claimedMS.Int64).UTC()
		item.ClaimedAt = &claimed
	}
	return item, nil
}
