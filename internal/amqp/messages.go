package amqp

import (
	"encoding/json"
	"time"
)

// EventAssetsImported is the message type of AssetsImportedMessage.
const EventAssetsImported = "assets.imported"

// AssetsImportedMessage announces a committed full-replace import.
type AssetsImportedMessage struct {
	Event      string    `json:"event"`
	ImportID   string    `json:"import_id"`
	Rows       int       `json:"rows"`
	Warnings   int       `json:"warnings"`
	TotalValue int64     `json:"total_value"`
	Source     string    `json:"source"`
	ImportedBy string    `json:"imported_by"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewAssetsImportedMessage creates a message stamped with the current time.
func NewAssetsImportedMessage(importID string, rows, warnings int, totalValue int64, source, importedBy string) *AssetsImportedMessage {
	return &AssetsImportedMessage{
		Event:      EventAssetsImported,
		ImportID:   importID,
		Rows:       rows,
		Warnings:   warnings,
		TotalValue: totalValue,
		Source:     source,
		ImportedBy: importedBy,
		Timestamp:  time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AssetsImportedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AssetsImportedMessageFromJSON parses a message body
func AssetsImportedMessageFromJSON(data []byte) (*AssetsImportedMessage, error) {
	var msg AssetsImportedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
