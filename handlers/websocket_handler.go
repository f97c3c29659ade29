package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pickemslab/bracket-engine/brackets"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The bracket feed is public read-only data.
		return true
	},
}

// ServeTournamentWs upgrades the connection and subscribes the client to the
// tournament's event room.
func ServeTournamentWs(hub *brackets.Hub, w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	client := &brackets.Client{
		Hub:  hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: brackets.RoomForTournament(tournamentID),
	}
	hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
