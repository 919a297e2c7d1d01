package mpesa

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const successCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 1.00},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "Balance"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254708374149}
        ]
      }
    }
  }
}`

func TestCallbackDetails(t *testing.T) {
	var req CallbackRequest
	require.NoError(t, json.Unmarshal([]byte(successCallback), &req))
	require.NotNil(t, req.Body.StkCallback)

	cb := *req.Body.StkCallback
	assert.True(t, cb.Succeeded())

	details := cb.Details()
	require.NotNil(t, details.Amount)
	assert.Equal(t, "1", details.Amount.String())
	assert.Equal(t, "NLJ7RT61SV", details.MpesaReceiptNumber)
	assert.Equal(t, "254708374149", details.PhoneNumber)
	require.NotNil(t, details.TransactionDate)
	assert.True(t, details.TransactionDate.Equal(time.Date(2019, 12, 19, 7, 21, 15, 0, time.UTC)))
}

func TestCallbackFailureHasNoDetails(t *testing.T) {
	var req CallbackRequest
	require.NoError(t, json.Unmarshal([]byte(`{"Body":{"stkCallback":{"MerchantRequestID":"m","CheckoutRequestID":"c","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`), &req))

	cb := *req.Body.StkCallback
	assert.False(t, cb.Succeeded())
	assert.Nil(t, cb.Details().Amount)
}
