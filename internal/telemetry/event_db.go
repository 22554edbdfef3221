// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package telemetry

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// update_events is the store-and-forward queue. The name and timestamp
// are first-class columns so the queue can be inspected with plain SQL;
// only the free-form fields ride as JSON.
func CreateEventsTable(dbFilePath string) error {
	db, err := sql.Open("sqlite", dbFilePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Err(closeErr).Msgf("failed to close database")
		}
	}()

	_, err = db.Exec("CREATE TABLE IF NOT EXISTS update_events(" +
		"id INTEGER PRIMARY KEY, " +
		"event_id TEXT NOT NULL, " +
		"device_time TEXT NOT NULL, " +
		"name TEXT NOT NULL, " +
		"fields_json TEXT);")
	if err != nil {
		return fmt.Errorf("failed to create update_events table: %w", err)
	}

	return nil
}

func SaveEvent(dbFilePath string, event *UpdateEvent) error {
	db, err := sql.Open("sqlite", dbFilePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Err(closeErr).Msgf("failed to close database")
		}
	}()

	fieldsJSON, err := json.Marshal(event.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal event fields to JSON: %w", err)
	}

	_, err = db.Exec("INSERT INTO update_events (event_id, device_time, name, fields_json) VALUES (?, ?, ?, ?);",
		event.Id, event.DeviceTime, event.Name, string(fieldsJSON))
	if err != nil {
		return fmt.Errorf("failed to insert event into update_events: %w", err)
	}

	return nil
}

func DeleteEvents(dbFilePath string, maxId int) error {
	db, err := sql.Open("sqlite", dbFilePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Err(closeErr).Msgf("failed to close database")
		}
	}()

	_, err = db.Exec("DELETE FROM update_events WHERE id <= ?;", maxId)
	if err != nil {
		return fmt.Errorf("failed to delete events from update_events: %w", err)
	}

	return nil
}

func GetEvents(dbFilePath string) ([]UpdateEvent, int, error) {
	db, err := sql.Open("sqlite", dbFilePath)
	if err != nil {
		return nil, -1, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Err(closeErr).Msgf("failed to close database")
		}
	}()

	rows, err := db.Query("SELECT id, event_id, device_time, name, fields_json FROM update_events;")
	if err != nil {
		return nil, -1, fmt.Errorf("failed to select events: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Err(closeErr).Msgf("failed to close rows")
		}
	}()

	maxId := -1
	var eventsList []UpdateEvent
	for rows.Next() {
		var id int
		var event UpdateEvent
		var fieldsJSON sql.NullString
		if err := rows.Scan(&id, &event.Id, &event.DeviceTime, &event.Name, &fieldsJSON); err != nil {
			return nil, -1, fmt.Errorf("failed to scan event data: %w", err)
		}

		if fieldsJSON.Valid && fieldsJSON.String != "" {
			if err := json.Unmarshal([]byte(fieldsJSON.String), &event.Fields); err != nil {
				return nil, -1, fmt.Errorf("failed to unmarshal event fields: %w", err)
			}
		}

		if maxId < id {
			maxId = id
		}
		eventsList = append(eventsList, event)
	}

	if err := rows.Err(); err != nil {
		return nil, -1, fmt.Errorf("error iterating over rows: %w", err)
	}

	return eventsList, maxId, nil
}
