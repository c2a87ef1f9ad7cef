package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	ErrRequestCreate  = errors.New("failed to create open cloud request")
	ErrRequestPerform = errors.New("could not perform open cloud request")
	ErrRequestStatus  = errors.New("invalid response code returned from open cloud")
)

// OpenCloudClient talks to the Roblox Open Cloud user-restrictions API. A ban
// maps to an active game-join restriction on the community's universe; an
// unban clears it.
type OpenCloudClient struct {
	baseURL string
	client  *http.Client
}

func NewOpenCloudClient(baseURL string) *OpenCloudClient {
	return &OpenCloudClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: time.Second * 10},
	}
}

type gameJoinRestriction struct {
	Active        bool   `json:"active"`
	DisplayReason string `json:"displayReason,omitempty"`
	PrivateReason string `json:"privateReason,omitempty"`
	// Duration is a seconds string per the open cloud proto3 convention,
	// omitted entirely for permanent restrictions.
	Duration string `json:"duration,omitempty"`
}

type userRestriction struct {
	GameJoinRestriction gameJoinRestriction `json:"gameJoinRestriction"`
}

func (c *OpenCloudClient) Restrict(ctx context.Context, universeID int64, apiKey string, payload Payload) error {
	restriction := userRestriction{
		GameJoinRestriction: gameJoinRestriction{
			Active:        payload.Action == ActionBan,
			DisplayReason: payload.Reason,
		},
	}

	if payload.Duration != nil {
		restriction.GameJoinRestriction.Duration = fmt.Sprintf("%ds", int64(payload.Duration.Seconds()))
	}

	body, errMarshal := json.Marshal(restriction)
	if errMarshal != nil {
		return errMarshal //nolint:wrapcheck
	}

	restrictionURL := fmt.Sprintf("%s/cloud/v2/universes/%d/user-restrictions/%d",
		c.baseURL, universeID, payload.PlayerID)

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPatch, restrictionURL, bytes.NewReader(body))
	if errReq != nil {
		return errors.Join(errReq, ErrRequestCreate)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)

	resp, errResp := c.client.Do(req)
	if errResp != nil {
		return errors.Join(errResp, ErrRequestPerform)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrRequestStatus, resp.StatusCode)
	}

	return nil
}
