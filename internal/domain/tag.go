package domain

import "time"

// TagRelation links a free-form tag name to an entry by hash key.
// There is no foreign key; orphans are swept after retention deletes entries.
type TagRelation struct {
	Name       string    `json:"name"`
	HashKey    string    `json:"hash_key"`
	CreateTime time.Time `json:"create_time"`
}
