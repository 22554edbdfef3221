// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package store

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

func CreateFlowsTable(dbFilePath string) error {
	db, err := sql.Open("sqlite", dbFilePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Err(closeErr).Msgf("failed to close database")
		}
	}()

	_, err = db.Exec("CREATE TABLE IF NOT EXISTS inflight_flows(id TEXT PRIMARY KEY, json_string TEXT NOT NULL);")
	if err != nil {
		return fmt.Errorf("failed to create inflight_flows table: %w", err)
	}

	return nil
}

// SaveFlow inserts or replaces the serialized in-flight flow record.
func SaveFlow(dbFilePath string, id string, flowJSON string) error {
	db, err := sql.Open("sqlite", dbFilePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Err(closeErr).Msgf("failed to close database")
		}
	}()

	_, err = db.Exec("INSERT OR REPLACE INTO inflight_flows (id, json_string) VALUES (?, ?);", id, flowJSON)
	if err != nil {
		return fmt.Errorf("failed to save flow %q: %w", id, err)
	}

	return nil
}

func DeleteFlow(dbFilePath string, id string) error {
	db, err := sql.Open("sqlite", dbFilePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Err(closeErr).Msgf("failed to close database")
		}
	}()

	_, err = db.Exec("DELETE FROM inflight_flows WHERE id = ?;", id)
	if err != nil {
		return fmt.Errorf("failed to delete flow %q: %w", id, err)
	}

	return nil
}

// GetFlows returns all persisted in-flight flow records. There is at most
// one by construction, but the scan tolerates more.
func GetFlows(dbFilePath string) (map[string]string, error) {
	db, err := sql.Open("sqlite", dbFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Err(closeErr).Msgf("failed to close database")
		}
	}()

	rows, err := db.Query("SELECT id, json_string FROM inflight_flows;")
	if err != nil {
		return nil, fmt.Errorf("failed to select flows: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Err(closeErr).Msgf("failed to close rows")
		}
	}()

	flows := map[string]string{}
	for rows.Next() {
		var id, flowJSON string
		if err := rows.Scan(&id, &flowJSON); err != nil {
			return nil, fmt.Errorf("failed to scan flow data: %w", err)
		}
		flows[id] = flowJSON
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	return flows, nil
}
