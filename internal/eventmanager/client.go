// Package eventmanager talks to the element REST endpoint of the event
// manager: process status updates on a source element and row resets on the
// event manager's own tables.
package eventmanager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/edvin/peacock/internal/model"
)

// ExternalRequestParameter is the element parameter that receives process
// updates.
const ExternalRequestParameter = 999

// DefaultElementName is the event manager element whose tables hold one row
// per event.
const DefaultElementName = "SLE Event Manager - LEM"

var (
	// ErrInvalidAddress is returned for element addresses not in
	// <dmaId>/<elementId> form.
	ErrInvalidAddress = errors.New("invalid element address")
	// ErrRowNotFound is returned when no event manager table holds the event.
	ErrRowNotFound = errors.New("event row not found")
)

// Address identifies an element by DataMiner agent and element id.
type Address struct {
	DMA     int
	Element int
}

func (a Address) String() string {
	return fmt.Sprintf("%d/%d", a.DMA, a.Element)
}

// ParseAddress parses "<dmaId>/<elementId>".
func ParseAddress(raw string) (Address, error) {
	dma, elem, ok := strings.Cut(strings.TrimSpace(raw), "/")
	if !ok {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}
	d, err := strconv.Atoi(dma)
	if err != nil || d < 0 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}
	e, err := strconv.Atoi(elem)
	if err != nil || e < 0 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}
	return Address{DMA: d, Element: e}, nil
}

// Client is an HTTP client for the element REST endpoint.
type Client struct {
	baseURL     string
	elementName string
	client      *http.Client
}

// NewClient creates a Client. elementName defaults to DefaultElementName.
func NewClient(baseURL, elementName string) *Client {
	if elementName == "" {
		elementName = DefaultElementName
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		elementName: elementName,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// SendProcessUpdate writes req as JSON to the external request parameter of
// the source element.
func (c *Client) SendProcessUpdate(ctx context.Context, sourceElement string, req model.ExternalRequest) error {
	addr, err := ParseAddress(sourceElement)
	if err != nil {
		return err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal process update: %w", err)
	}
	return c.SetParameter(ctx, addr, ExternalRequestParameter, string(body))
}

// SetParameter writes a string value to a parameter of the element at addr.
func (c *Client) SetParameter(ctx context.Context, addr Address, parameterID int, value string) error {
	endpoint := fmt.Sprintf("%s/elements/%d/%d/parameters/%d", c.baseURL, addr.DMA, addr.Element, parameterID)
	status, err := c.put(ctx, endpoint, map[string]string{"value": value})
	if err != nil {
		return fmt.Errorf("set parameter %d on %s: %w", parameterID, addr, err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("set parameter %d on %s: element endpoint returned %d", parameterID, addr, status)
	}
	return nil
}

// Event manager tables and columns touched when a provision is rebuilt.
const (
	vlTable           = 2100
	vlDomInstance     = 2126
	vlProcessStatus   = 2127
	vlActivateButton  = 2118
	sleTable          = 200
	sleDomInstance    = 230
	sleProcessStatus  = 231
	processStatusIdle = 1
)

// ResetEventRow puts the event back to idle so it can be provisioned again.
// The row is looked up in the VL table first, then in the SLE table.
func (c *Client) ResetEventRow(ctx context.Context, eventID string) error {
	found, err := c.setRow(ctx, vlTable, eventID, map[string]any{
		strconv.Itoa(vlDomInstance):    "",
		strconv.Itoa(vlProcessStatus):  processStatusIdle,
		strconv.Itoa(vlActivateButton): 1,
	})
	if err != nil || found {
		return err
	}

	found, err = c.setRow(ctx, sleTable, eventID, map[string]any{
		strconv.Itoa(sleDomInstance):   "",
		strconv.Itoa(sleProcessStatus): processStatusIdle,
	})
	if err != nil || found {
		return err
	}
	return fmt.Errorf("reset event %s: %w", eventID, ErrRowNotFound)
}

func (c *Client) setRow(ctx context.Context, table int, key string, columns map[string]any) (bool, error) {
	endpoint := fmt.Sprintf("%s/elements/by-name/%s/tables/%d/rows/%s",
		c.baseURL, url.PathEscape(c.elementName), table, url.PathEscape(key))
	status, err := c.put(ctx, endpoint, map[string]any{"columns": columns})
	if err != nil {
		return false, fmt.Errorf("set row %s in table %d: %w", key, table, err)
	}
	switch {
	case status == http.StatusNotFound:
		return false, nil
	case status >= 200 && status < 300:
		return true, nil
	default:
		return false, fmt.Errorf("set row %s in table %d: element endpoint returned %d", key, table, status)
	}
}

func (c *Client) put(ctx context.Context, endpoint string, payload any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()
	return resp.StatusCode, nil
}
