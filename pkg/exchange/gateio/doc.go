// Package gateio is a client for the Gate.io v4 spot API. It covers signed
// REST calls through Client and the WebSocket feed through WSClient, with
// server messages decoded into typed results by channel and event.
//
// Gate.io API Documentation: https://www.gate.io/docs/developers/apiv4/
package gateio
