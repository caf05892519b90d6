// Package types holds the messages exchanged with overlays and control panels.
//
// Client -> Server (websocket, one JSON object per frame; "type" is a command name):
//
//	AddRobot / DeleteRobot:    robot
//	GenerateTestRobots:        {}
//	SetMatch:                  robot1?, robot2?, round?
//	CreateBracket:             {}
//	AssignRobots:              shuffle
//	AssignPosition:            position (7 | "7" | "pos_7"), robot ("" clears)
//	StartTournament:           {}
//	AdvanceWinner:             match_id, winner
//	UndoMatch:                 match_id
//	ResetBracket:              {}
//	StartTimer / ResetTimer:   duration? (seconds)
//	StopTimer:                 {}
//	SetOverlayMode:            mode ("match" | "bracket")
//	ShowWinner:                robot
//	HideWinner:                {}
//	SetTitle:                  title
//
// Server -> Client:
//
//	StateSnapshot: version, state (full tournament state)
//	Ack:           version after the client's command was applied
//	Error:         code ("not_found" | "conflict" | "invalid" | "bad_request" | "internal"), error
package types
