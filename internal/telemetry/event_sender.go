// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// EventFlowCompleted carries the fields of a completed update flow.
	EventFlowCompleted = "update-flow.completed"
	// EventValidationSuccess through EventValidationUnexpected are the
	// cross-restart validation outcomes.
	EventValidationSuccess    = "update-validation.success"
	EventValidationFailure    = "update-validation.failure"
	EventValidationUnexpected = "update-validation.unexpected-update"

	defaultFlushInterval = 5 * time.Minute
)

type UpdateEvent struct {
	Id         string            `json:"id"`
	DeviceTime string            `json:"deviceTime"`
	Name       string            `json:"name"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// Sender queues update events in the local database and flushes them in
// batches to the telemetry endpoint. Store-and-forward: a kill between
// enqueue and flush loses nothing, the next flush picks the events up.
type Sender struct {
	dbFilePath string
	endpoint   string
	client     *http.Client

	interval time.Duration
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewSender(dbFilePath string, endpoint string) *Sender {
	return &Sender{
		dbFilePath: dbFilePath,
		endpoint:   endpoint,
		client:     &http.Client{Timeout: 30 * time.Second},
		interval:   defaultFlushInterval,
	}
}

func NewEvent(name string, fields map[string]string) *UpdateEvent {
	return &UpdateEvent{
		Id:         uuid.New().String(),
		DeviceTime: time.Now().Format(time.RFC3339),
		Name:       name,
		Fields:     fields,
	}
}

// Enqueue persists the event locally; it is sent on the next flush.
func (s *Sender) Enqueue(name string, fields map[string]string) {
	if err := SaveEvent(s.dbFilePath, NewEvent(name, fields)); err != nil {
		log.Err(err).Msgf("failed to enqueue %s event", name)
	}
}

// EmitFlowCompletion implements the flow tracker's emitter.
func (s *Sender) EmitFlowCompletion(fields map[string]string) {
	s.Enqueue(EventFlowCompleted, fields)
}

// EmitValidationOutcome implements the relaunch validator's emitter.
func (s *Sender) EmitValidationOutcome(name string, fields map[string]string) {
	s.Enqueue(name, fields)
}

func (s *Sender) Start() {
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if err := s.Flush(); err != nil {
					log.Err(err).Msg("periodic event flush failed")
				}
			}
		}
	}()
}

func (s *Sender) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.stop = nil
	if err := s.Flush(); err != nil {
		log.Err(err).Msg("final event flush failed")
	}
}

func (s *Sender) Flush() error {
	evts, maxId, err := GetEvents(s.dbFilePath)
	if err != nil {
		return fmt.Errorf("error getting events: %w", err)
	}

	if len(evts) == 0 {
		log.Debug().Msg("No events to send")
		return nil
	}

	log.Debug().Msgf("Flushing %d events", len(evts))
	err = SendEvents(s.client, s.endpoint, evts)
	if err != nil {
		return fmt.Errorf("error sending events: %w", err)
	}

	err = DeleteEvents(s.dbFilePath, maxId)
	if err != nil {
		return fmt.Errorf("error deleting events: %w", err)
	}
	return nil
}

func SendEvents(client *http.Client, endpoint string, events []UpdateEvent) error {
	body, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	res, err := client.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Err(err).Msg("Unable to send events")
		return err
	}
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			log.Err(closeErr).Msgf("failed to close response body")
		}
	}()
	if res.StatusCode < 200 || res.StatusCode > 204 {
		resBody, _ := io.ReadAll(res.Body)
		log.Info().Msgf("Server could not process events: HTTP_%d - %s", res.StatusCode, string(resBody))
		return fmt.Errorf("server rejected events: HTTP_%d", res.StatusCode)
	}
	return nil
}
