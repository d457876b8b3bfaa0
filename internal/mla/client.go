// Package mla is the client for the external membership directory API. Every
// request is HMAC-signed, and every response passes through the same envelope
// validation pipeline before a typed record is handed to callers.
package mla

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/mlaa/commons-sync/internal/database/types/enum"
	"github.com/mlaa/commons-sync/internal/mla/sign"
	"github.com/mlaa/commons-sync/pkg/utils"
	"go.uber.org/zap"
)

// codeInvalidCredentials is the meta code the directory returns for a failed
// password check.
const codeInvalidCredentials = "API-2100"

// Client executes signed requests against the membership directory.
type Client struct {
	baseURL string
	signer  *sign.Signer
	client  *http.Client
	retry   utils.RetryOptions
	logger  *zap.Logger
}

// NewClient creates a directory client. The timeout bounds every request;
// a timed-out call is classified as a transport failure.
func NewClient(
	baseURL string, signer *sign.Signer, timeout time.Duration,
	retry utils.RetryOptions, logger *zap.Logger,
) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		signer:  signer,
		client:  &http.Client{Timeout: timeout},
		retry:   retry,
		logger:  logger.Named("mla_client"),
	}
}

// GetMember fetches a member record by external id or username.
func (c *Client) GetMember(ctx context.Context, idOrUsername string) (*MemberRecord, error) {
	body, err := c.do(ctx, http.MethodGet, "/members/"+url.PathEscape(idOrUsername), nil, nil)
	if err != nil {
		return nil, err
	}

	env, err := decodeEnvelope[MemberRecord](body)
	if err != nil {
		return nil, fmt.Errorf("member %q: %w", idOrUsername, err)
	}

	return memberFromEnvelope(env, idOrUsername)
}

// GetMemberWithAuth fetches a member record while verifying the supplied
// password. A rejected password surfaces as ErrInvalidCredentials rather
// than a protocol error so callers can render a specific message.
func (c *Client) GetMemberWithAuth(ctx context.Context, idOrUsername, password string) (*MemberRecord, error) {
	params := url.Values{}
	params.Set("password", password)

	body, err := c.do(ctx, http.MethodGet, "/members/"+url.PathEscape(idOrUsername), params, nil)
	if err != nil {
		return nil, err
	}

	env, err := decodeEnvelope[MemberRecord](body)
	if err != nil {
		var raw Envelope[MemberRecord]
		if decodeErr := sonic.Unmarshal(body, &raw); decodeErr == nil && raw.Meta.Code == codeInvalidCredentials {
			return nil, fmt.Errorf("member %q: %w: %w", idOrUsername, ErrAuthentication, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("member %q: %w", idOrUsername, err)
	}

	return memberFromEnvelope(env, idOrUsername)
}

// GetGroup fetches an organization record with its roster, restricted to
// members who have joined the commons.
func (c *Client) GetGroup(ctx context.Context, externalID string) (*GroupRecord, error) {
	params := url.Values{}
	params.Set("joined_commons", "Y")

	body, err := c.do(ctx, http.MethodGet, "/organizations/"+url.PathEscape(externalID), params, nil)
	if err != nil {
		return nil, err
	}

	env, err := decodeEnvelope[GroupRecord](body)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", externalID, err)
	}

	record, err := exactlyOne(env.Data)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", externalID, err)
	}

	if record.Members == nil {
		return nil, fmt.Errorf("group %q: %w: members", externalID, ErrSchema)
	}

	return record, nil
}

// ChangeUsername pushes a member's new username to the directory.
func (c *Client) ChangeUsername(ctx context.Context, externalID, newUsername string) error {
	payload := map[string]string{"username": newUsername}

	body, err := c.do(ctx, http.MethodPut, "/members/"+url.PathEscape(externalID)+"/username", nil, payload)
	if err != nil {
		return err
	}

	if _, err := decodeEnvelope[map[string]any](body); err != nil {
		return fmt.Errorf("member %q username change: %w", externalID, err)
	}

	c.logger.Info("Changed username in directory",
		zap.String("externalID", externalID),
		zap.String("username", newUsername))

	return nil
}

// IsDuplicateUsername asks the directory whether a username is already taken
// by another member. An empty result set is the "available" answer here, not
// an error.
func (c *Client) IsDuplicateUsername(ctx context.Context, username string) (bool, error) {
	params := url.Values{}
	params.Set("type", "duplicate")
	params.Set("username", username)

	body, err := c.do(ctx, http.MethodGet, "/members", params, nil)
	if err != nil {
		return false, err
	}

	env, err := decodeEnvelope[DuplicateRecord](body)
	if err != nil {
		return false, fmt.Errorf("duplicate check %q: %w", username, err)
	}

	return len(env.Data) > 0, nil
}

// RemoteRoleMap converts a group's external roster into the role map the
// reconciler consumes. Entries with an empty member id are logged and
// skipped; they are a directory data error, not a reason to abort.
func (c *Client) RemoteRoleMap(record *GroupRecord) map[string]enum.Role {
	roster := make(map[string]enum.Role, len(*record.Members))

	for _, member := range *record.Members {
		if member.ID == "" {
			c.logger.Warn("Skipping roster entry with empty member id",
				zap.String("groupID", record.ID),
				zap.String("username", member.Username))

			continue
		}

		roster[member.ID] = TranslateRole(member.Position)
	}

	return roster
}

// do executes one signed request. Transport failures are retried with
// exponential backoff; anything past a decoded body is the caller's problem.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload any) ([]byte, error) {
	return utils.WithRetry(ctx, func() ([]byte, error) {
		signedURL := c.signer.Sign(method, c.baseURL+path, params)

		var reqBody io.Reader

		if payload != nil {
			encoded, err := sonic.Marshal(payload)
			if err != nil {
				return nil, backoff.Permanent(fmt.Errorf("failed to encode request body: %w", err))
			}

			reqBody = bytes.NewReader(encoded)
		}

		req, err := http.NewRequestWithContext(ctx, method, signedURL, reqBody)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read response: %w", ErrTransport, err)
		}

		if resp.StatusCode != http.StatusOK {
			transportErr := fmt.Errorf("%w: HTTP %d", ErrTransport, resp.StatusCode)
			if resp.StatusCode >= http.StatusInternalServerError {
				return nil, transportErr
			}

			// Client errors will not improve on retry.
			return nil, backoff.Permanent(transportErr)
		}

		return body, nil
	}, c.retry)
}

// decodeEnvelope decodes a response body and validates the meta section.
// The envelope must report a success status with a recognized code.
func decodeEnvelope[T any](body []byte) (*Envelope[T], error) {
	var env Envelope[T]
	if err := sonic.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: undecodable body: %w", ErrProtocol, err)
	}

	if env.Meta.Status != "success" || !strings.HasPrefix(env.Meta.Code, "API-") {
		return nil, fmt.Errorf("%w: status %q, code %q", ErrProtocol, env.Meta.Status, env.Meta.Code)
	}

	return &env, nil
}

// exactlyOne enforces the single-record expectation most endpoints carry.
func exactlyOne[T any](data []T) (*T, error) {
	switch len(data) {
	case 0:
		return nil, ErrEmptyResult
	case 1:
		return &data[0], nil
	default:
		return nil, fmt.Errorf("%w: got %d", ErrAmbiguousResult, len(data))
	}
}

// memberFromEnvelope applies the single-record and required-property checks
// shared by the member endpoints.
func memberFromEnvelope(env *Envelope[MemberRecord], idOrUsername string) (*MemberRecord, error) {
	record, err := exactlyOne(env.Data)
	if err != nil {
		return nil, fmt.Errorf("member %q: %w", idOrUsername, err)
	}

	if record.Organizations == nil {
		return nil, fmt.Errorf("member %q: %w: organizations", idOrUsername, ErrSchema)
	}

	return record, nil
}
