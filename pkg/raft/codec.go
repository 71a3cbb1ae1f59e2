package raft

import "encoding/json"

// Log entries carry JSON-encoded payloads. The wire format is not
// part of the spec's contract (only "some serializable form" is
// required, §3); JSON keeps the session manager free of a generated
// codec dependency while still round-tripping through LogEntry.Payload
// exactly like a real command would.

func encodeOpenSession(req *OpenSessionRequest) []byte {
	b, _ := json.Marshal(req)
	return b
}

func decodeOpenSession(payload []byte) (*OpenSessionRequest, error) {
	var req OpenSessionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func encodeCloseSession(req *CloseSessionRequest) []byte {
	b, _ := json.Marshal(req)
	return b
}

func decodeCloseSession(payload []byte) (*CloseSessionRequest, error) {
	var req CloseSessionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func encodeKeepAlive(req *KeepAliveRequest) []byte {
	b, _ := json.Marshal(req)
	return b
}

func decodeKeepAlive(payload []byte) (*KeepAliveRequest, error) {
	var req KeepAliveRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func encodeCommand(req *CommandRequest) []byte {
	b, _ := json.Marshal(req)
	return b
}

func decodeCommand(payload []byte) (*CommandRequest, error) {
	var req CommandRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func encodeConfiguration(cfg Configuration) []byte {
	b, _ := json.Marshal(cfg)
	return b
}

func decodeConfiguration(payload []byte) (Configuration, error) {
	var cfg Configuration
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}
