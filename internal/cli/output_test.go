package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("REMOTE_UNAVAILABLE", "checkout failed", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "REMOTE_UNAVAILABLE", resp.Error.Code)
	assert.Equal(t, "checkout failed", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"sale_id": "sale-0001", "reason": "insufficient_stock"}
	err := formatter.Error("REMOTE_REJECTED", "sale rejected", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("Cart is empty.")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Cart is empty.")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("REMOTE_UNAVAILABLE", "checkout failed", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [REMOTE_UNAVAILABLE]")
	assert.Contains(t, buf.String(), "checkout failed")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"sale_id": "sale-0001"}
	err := formatter.Error("REMOTE_UNAVAILABLE", "checkout failed", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [REMOTE_UNAVAILABLE]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("scanned %s", "4006381333931")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "scanned 4006381333931")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"count": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "SALE_NOT_RECORDED",
		Message: "sale not recorded",
		Details: []string{"storage unavailable"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "SALE_NOT_RECORDED", decoded.Code)
	assert.Equal(t, "sale not recorded", decoded.Message)
}

func TestExitError_WithDetails(t *testing.T) {
	err := WrapExitError(ExitBlocked, "sale not recorded", errors.New("disk full")).WithDetails("cart kept")
	assert.Equal(t, "sale not recorded: disk full", err.Error())
	assert.Equal(t, "cart kept", err.Details)
	assert.Equal(t, ExitBlocked, GetExitCode(err))
}

func TestMoney(t *testing.T) {
	tests := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		350:    "3.50",
		123456: "1234.56",
		-275:   "-2.75",
	}
	for minor, want := range tests {
		assert.Equal(t, want, Money(minor), "%d", minor)
	}
}
