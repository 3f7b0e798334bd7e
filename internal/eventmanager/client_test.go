package eventmanager

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/peacock/internal/model"
)

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("123/456")
	require.NoError(t, err)
	assert.Equal(t, Address{DMA: 123, Element: 456}, addr)
	assert.Equal(t, "123/456", addr.String())

	for _, raw := range []string{"", "123", "abc/1", "1/abc", "1/-2", "1/2/3"} {
		_, err := ParseAddress(raw)
		assert.ErrorIs(t, err, ErrInvalidAddress, raw)
	}
}

func TestSendProcessUpdate_Success(t *testing.T) {
	var gotPath string
	var gotBody struct {
		Value string `json:"value"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "")
	err := c.SendProcessUpdate(context.Background(), "12/34",
		model.NewPeacockResponse("EPL Match", model.ProcessStatusComplete))
	require.NoError(t, err)

	assert.Equal(t, "/elements/12/34/parameters/999", gotPath)
	assert.JSONEq(t,
		`{"type":"Process Automation","processResponse":{"eventName":"EPL Match","peacock":{"status":"Complete"}}}`,
		gotBody.Value)
}

func TestSendProcessUpdate_InvalidAddress(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "")
	err := c.SendProcessUpdate(context.Background(), "not-an-element", model.NewPeacockResponse("x", "Active"))
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestSendProcessUpdate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	err := c.SendProcessUpdate(context.Background(), "1/2", model.NewPeacockResponse("x", "Active"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 500")
}

func TestResetEventRow_VLTable(t *testing.T) {
	var paths []string
	var columns map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var body struct {
			Columns map[string]any `json:"columns"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		columns = body.Columns
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	require.NoError(t, c.ResetEventRow(context.Background(), "evt-1"))

	require.Len(t, paths, 1)
	assert.Equal(t, "/elements/by-name/SLE Event Manager - LEM/tables/2100/rows/evt-1", paths[0])
	assert.Equal(t, "", columns["2126"])
	assert.Equal(t, float64(1), columns["2127"])
	assert.Equal(t, float64(1), columns["2118"])
}

func TestResetEventRow_FallsBackToSLETable(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/elements/by-name/LEM/tables/2100/rows/evt-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "LEM")
	require.NoError(t, c.ResetEventRow(context.Background(), "evt-1"))
	assert.Equal(t, []string{
		"/elements/by-name/LEM/tables/2100/rows/evt-1",
		"/elements/by-name/LEM/tables/200/rows/evt-1",
	}, paths)
}

func TestResetEventRow_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	err := c.ResetEventRow(context.Background(), "evt-1")
	require.ErrorIs(t, err, ErrRowNotFound)
}
