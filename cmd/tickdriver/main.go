// Command tickdriver polls a running server's tick endpoint. With --game it
// drives the named games; without it, it discovers active games from the
// server and drives each one it finds. It exists for deployments where the
// game server runs without its in-process driver, and as a load-testing
// harness.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"

	"github.com/Dorschm/stellar-sub001/internal/auth"
	"github.com/Dorschm/stellar-sub001/internal/logger"
)

type options struct {
	Server           string        `long:"server" default:"http://localhost:8010" description:"Base URL of the game server"`
	GameIDs          []string      `long:"game" description:"Game ID to drive (repeatable); when omitted, active games are discovered from the server"`
	PollInterval     time.Duration `long:"poll-interval" default:"100ms" description:"Delay between tick requests per game"`
	DiscoverInterval time.Duration `long:"discover-interval" default:"5s" description:"Delay between active-game discovery requests"`
	Secret           string        `long:"secret" env:"TICK_AUTH_SECRET" description:"Service token secret; empty sends unauthenticated requests"`
}

func main() {
	logger.Init()

	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	var token string
	if mgr := auth.NewTokenManager(opts.Secret); mgr != nil {
		t, err := mgr.Generate("tickdriver")
		if err != nil {
			log.Fatal().Err(err).Msg("Token generation failed")
		}
		token = t
	}

	d := &driver{
		client:   &http.Client{Timeout: 10 * time.Second},
		base:     opts.Server,
		token:    token,
		interval: opts.PollInterval,
	}

	if len(opts.GameIDs) > 0 {
		for _, gameID := range opts.GameIDs {
			go d.drive(gameID)
		}
		select {}
	}
	d.discoverLoop(opts.DiscoverInterval)
}

type driver struct {
	client   *http.Client
	base     string
	token    string
	interval time.Duration
}

// discoverLoop polls the server's active-game list and starts a drive
// goroutine for every game not yet being driven. Completed games never
// return to the active list, so the seen set only grows.
func (d *driver) discoverLoop(every time.Duration) {
	driving := make(map[string]bool)
	for {
		ids, err := d.activeGames()
		if err != nil {
			log.Warn().Err(err).Msg("Active game discovery failed")
		}
		for _, id := range ids {
			if driving[id] {
				continue
			}
			driving[id] = true
			log.Info().Str("gameId", id).Msg("Driving discovered game")
			go d.drive(id)
		}
		time.Sleep(every)
	}
}

// activeGames fetches the IDs of games currently in active status.
func (d *driver) activeGames() ([]string, error) {
	resp, err := d.client.Get(d.base + "/api/games/active")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("active games: status %d", resp.StatusCode)
	}

	var parsed struct {
		Games []struct {
			ID string `json:"id"`
		} `json:"games"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(parsed.Games))
	for _, g := range parsed.Games {
		ids = append(ids, g.ID)
	}
	return ids, nil
}

func (d *driver) drive(gameID string) {
	body, _ := json.Marshal(map[string]string{"gameId": gameID})
	for {
		if done := d.tick(gameID, body); done {
			log.Info().Str("gameId", gameID).Msg("Game finished, driver stopping")
			return
		}
		time.Sleep(d.interval)
	}
}

// tick sends one tick request; returns true when the game no longer needs
// driving.
func (d *driver) tick(gameID string, body []byte) bool {
	req, err := http.NewRequest(http.MethodPost, d.base+"/api/tick", bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("Request build failed")
		return true
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("gameId", gameID).Msg("Tick request failed")
		return false
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("body", string(data)).Msg("Tick rejected")
		return resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnauthorized
	}

	var parsed struct {
		Tick         int    `json:"tick"`
		GameComplete bool   `json:"gameComplete"`
		Winner       string `json:"winner"`
		Message      string `json:"message"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		log.Warn().Err(err).Msg("Tick response parse failed")
		return false
	}
	if parsed.GameComplete {
		fmt.Printf("game %s complete, winner %s\n", gameID, parsed.Winner)
		return true
	}
	return parsed.Message != "" && parsed.Message != "Game not active"
}
