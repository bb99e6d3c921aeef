// Package adminhttp exposes the Supervisor's room operations over HTTP, an
// operator surface parallel to the chat dispatcher, routed with
// httprouter the way Seednode-partybox registers its game handlers.
package adminhttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/sgr-room/matchd/internal/room"
	"github.com/sgr-room/matchd/internal/supervisor"
)

// NewRouter builds the admin HTTP surface: GET /rooms, POST /rooms,
// POST /rooms/close-all, POST /rooms/force-close-all.
func NewRouter(sup *supervisor.Supervisor, log *slog.Logger) *httprouter.Router {
	if log == nil {
		log = slog.Default()
	}
	r := httprouter.New()
	r.GET("/rooms", listRooms(sup))
	r.POST("/rooms", openRoom(sup, log))
	r.POST("/rooms/close-all", closeAll(sup))
	r.POST("/rooms/force-close-all", forceCloseAll(sup))
	return r
}

func listRooms(sup *supervisor.Supervisor) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"rooms": sup.RoomIDs()})
	}
}

func openRoom(sup *supervisor.Supervisor, log *slog.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		params := room.Defaults()
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		id, err := sup.OpenRoom(r.Context(), params)
		if err != nil {
			log.Error("admin open room failed", "room", params.Name, "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": id})
	}
}

func closeAll(sup *supervisor.Supervisor) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		go sup.CloseAll(context.Background())
		w.WriteHeader(http.StatusAccepted)
	}
}

func forceCloseAll(sup *supervisor.Supervisor) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		sup.ForceCloseAll()
		w.WriteHeader(http.StatusAccepted)
	}
}
