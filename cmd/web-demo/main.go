// Command web-demo serves a websocket table for a small two-player duel
// defined entirely as data. It exists to exercise the engine end to end:
// the browser client creates a table, performs actions, and watches the
// rule engine and phase machine react.
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tableforge/engine-go/internal/config"
	"github.com/tableforge/engine-go/internal/definition"
	"github.com/tableforge/engine-go/internal/ecs"
	"github.com/tableforge/engine-go/internal/game"
	"github.com/tableforge/engine-go/internal/game/zones"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // demo only
	},
}

// emberDuel is the built-in demo game: two duelists spend energy to strike
// each other, regain energy at the start of their turn, and lose when their
// health runs out.
const emberDuel = `{
  "name": "Ember Duel",
  "playerCount": 2,
  "components": {
    "stats": {
      "properties": {
        "health": {"type": "number", "default": 20},
        "energy": {"type": "number", "default": 3}
      }
    },
    "card": {
      "properties": {
        "name": {"type": "string"},
        "power": {"type": "number", "default": 1}
      }
    }
  },
  "zones": {
    "deck":    {"visibility": "private",   "ordered": true},
    "hand":    {"visibility": "ownerOnly", "ordered": true},
    "discard": {"visibility": "public",    "ordered": true},
    "arena":   {"visibility": "public",    "shared": true}
  },
  "templates": {
    "player": {"stats": {"health": 20, "energy": 3}},
    "ember":  {"card": {"name": "Ember", "power": 1}}
  },
  "setup": [
    {"template": "ember", "zone": "deck", "count": 8, "perPlayer": true}
  ],
  "actions": {
    "strike": {
      "targetCount": 1,
      "preconditions": [
        {"type": "hasComponent", "entity": "target", "component": "stats"},
        {"type": "compare", "entity": "target", "component": "stats", "field": "health", "operator": "gt", "value": 0},
        {"type": "compare", "entity": "actor", "component": "stats", "field": "energy", "operator": "gte", "value": 2}
      ],
      "costs": [
        {"type": "modifyNumber", "entity": "actor", "component": "stats", "field": "energy", "op": "subtract", "amount": 2}
      ],
      "effects": [
        {"type": "modifyNumber", "entity": "target", "component": "stats", "field": "health", "op": "subtract", "amount": 3}
      ]
    },
    "channel": {
      "effects": [
        {"type": "modifyNumber", "entity": "actor", "component": "stats", "field": "energy", "op": "add", "amount": 1}
      ]
    },
    "mulligan": {
      "preconditions": [
        {"type": "compare", "entity": "actor", "component": "stats", "field": "energy", "operator": "gte", "value": 1}
      ],
      "costs": [
        {"type": "modifyNumber", "entity": "actor", "component": "stats", "field": "energy", "op": "subtract", "amount": 1}
      ],
      "effects": [
        {"type": "shuffleZone", "zone": "zone:deck:actor"}
      ]
    }
  },
  "phases": {
    "upkeep": {"allowedActions": ["channel"], "autoAdvance": true, "nextPhase": "main"},
    "main":   {"allowedActions": ["strike", "channel", "mulligan"], "nextPhase": "upkeep"}
  },
  "initialPhase": "upkeep",
  "rules": [
    {
      "id": "upkeep-energy",
      "trigger": {"eventType": "TURN_BEGAN"},
      "effects": [
        {"type": "modifyNumber", "entity": "actor", "component": "stats", "field": "energy", "op": "add", "amount": 2}
      ]
    }
  ],
  "health": {"component": "stats", "field": "health"}
}`

type PlayerState struct {
	Seat   int     `json:"seat"`
	Entity int     `json:"entity"`
	Health float64 `json:"health"`
	Energy float64 `json:"energy"`
	Active bool    `json:"active"`
}

type ZoneState struct {
	Name     string `json:"name"`
	Owner    int    `json:"owner"` // seat, -1 for shared
	Count    int    `json:"count"`
	Entities []int  `json:"entities,omitempty"`
}

type ActionView struct {
	Type    string `json:"type"`
	Targets []int  `json:"targets,omitempty"`
}

type EventView struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

type GameState struct {
	TableID      string        `json:"table_id"`
	Name         string        `json:"name"`
	Phase        string        `json:"phase"`
	ActiveSeat   int           `json:"active_seat"`
	GameOver     bool          `json:"game_over"`
	WinnerSeat   int           `json:"winner_seat"` // -1 while in progress or on a draw
	EndReason    string        `json:"end_reason,omitempty"`
	Players      []PlayerState `json:"players"`
	Zones        []ZoneState   `json:"zones"`
	ValidActions []ActionView  `json:"valid_actions"`
	Events       []EventView   `json:"events"`
}

type WSMessage struct {
	Type    string `json:"type"`
	TableID string `json:"table_id,omitempty"`
	Action  string `json:"action,omitempty"`
	Targets []int  `json:"targets,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// table is one running game behind the hub. Engine calls are serialized by
// the hub's mutex; the engine itself is not goroutine-safe.
type table struct {
	id  string
	def *definition.GameDefinition
	eng *game.Engine
}

type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	tableID string
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu     sync.Mutex
	tables map[string]*table

	def *definition.GameDefinition
	cfg *config.Config
	log *zap.Logger
}

func newHub(def *definition.GameDefinition, cfg *config.Config, log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		tables:     make(map[string]*table),
		def:        def,
		cfg:        cfg,
		log:        log,
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.log.Info("client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Info("client unregistered")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

func (h *Hub) createTable(id string) (*table, error) {
	eng, _, err := definition.Build(h.def, game.Options{
		MaxEventChain:     h.cfg.Engine.MaxEventChain,
		MaxPhaseAdvances:  h.cfg.Engine.MaxPhaseAdvances,
		MaxConditionDepth: h.cfg.Engine.MaxConditionDepth,
		Seed:              h.cfg.Engine.Seed,
		Logger:            h.log.Named("engine"),
	})
	if err != nil {
		return nil, err
	}
	t := &table{id: id, def: h.def, eng: eng}
	h.tables[id] = t
	return t, nil
}

func (h *Hub) handleMessage(client *Client, msg WSMessage) {
	h.log.Debug("message received", zap.String("type", msg.Type))

	switch msg.Type {
	case "create_table":
		h.mu.Lock()
		id := "table-" + time.Now().Format("20060102-150405")
		t, err := h.createTable(id)
		h.mu.Unlock()
		if err != nil {
			h.log.Error("create table failed", zap.Error(err))
			client.sendError(err.Error())
			return
		}
		client.tableID = id
		h.broadcastState(t)

	case "join_table":
		h.mu.Lock()
		t, ok := h.tables[msg.TableID]
		var err error
		if !ok {
			t, err = h.createTable(msg.TableID)
		}
		h.mu.Unlock()
		if err != nil {
			client.sendError(err.Error())
			return
		}
		client.tableID = msg.TableID
		h.broadcastState(t)

	case "perform_action":
		h.withTable(client, func(t *table) error {
			targets := make([]ecs.Entity, len(msg.Targets))
			for i, id := range msg.Targets {
				targets[i] = ecs.Entity(id)
			}
			a := t.eng.Actions().Instantiate(msg.Action, t.eng.ActivePlayer(), targets)
			return t.eng.PerformAction(a)
		})

	case "end_turn":
		h.withTable(client, func(t *table) error {
			return t.eng.EndTurn()
		})
	}
}

// withTable runs an engine mutation under the hub lock and broadcasts the
// resulting state. Engine errors go back to the requesting client only.
func (h *Hub) withTable(client *Client, fn func(*table) error) {
	h.mu.Lock()
	t := h.tables[client.tableID]
	var err error
	if t != nil {
		err = fn(t)
	}
	h.mu.Unlock()

	if t == nil {
		client.sendError("no table joined")
		return
	}
	if err != nil {
		h.log.Warn("engine call rejected", zap.Error(err))
		client.sendError(err.Error())
	}
	h.broadcastState(t)
}

func (h *Hub) broadcastState(t *table) {
	h.mu.Lock()
	state := snapshotState(t)
	h.mu.Unlock()

	response, _ := json.Marshal(WSMessage{
		Type:    "game_state",
		TableID: t.id,
		Data:    state,
	})
	for client := range h.clients {
		if client.tableID == t.id {
			select {
			case client.send <- response:
			default:
			}
		}
	}
}

// snapshotState projects the engine into the wire shape. Caller holds the
// hub lock.
func snapshotState(t *table) GameState {
	eng := t.eng
	status := eng.Status()
	players := eng.Players()
	seatOf := make(map[ecs.Entity]int, len(players))
	for i, p := range players {
		seatOf[p] = i
	}

	state := GameState{
		TableID:    t.id,
		Name:       t.def.Name,
		Phase:      eng.CurrentPhase(),
		GameOver:   status.IsGameOver,
		WinnerSeat: -1,
		EndReason:  status.EndReason,
	}
	if seat, ok := seatOf[eng.ActivePlayer()]; ok {
		state.ActiveSeat = seat
	}
	if seat, ok := seatOf[status.Winner]; ok && status.IsGameOver {
		state.WinnerSeat = seat
	}

	store := eng.Store()
	for i, p := range players {
		ps := PlayerState{Seat: i, Entity: int(p), Active: p == eng.ActivePlayer()}
		if v, ok := store.Field("stats", p, "health"); ok {
			ps.Health, _ = ecs.ToFloat(v)
		}
		if v, ok := store.Field("stats", p, "energy"); ok {
			ps.Energy, _ = ecs.ToFloat(v)
		}
		state.Players = append(state.Players, ps)
	}

	zs := eng.Zones()
	for _, ze := range store.EntitiesWith(zones.ComponentZone) {
		zc, ok := zs.Zone(ze)
		if !ok {
			continue
		}
		owner := -1
		if seat, ok := seatOf[zc.Owner]; ok {
			owner = seat
		}
		entry := ZoneState{Name: zc.Name, Owner: owner, Count: zs.Count(ze)}
		if zc.Visibility == zones.VisibilityPublic {
			for _, e := range zs.EntitiesIn(ze) {
				entry.Entities = append(entry.Entities, int(e))
			}
		}
		state.Zones = append(state.Zones, entry)
	}

	if !status.IsGameOver {
		for _, a := range eng.ValidActions(eng.ActivePlayer()) {
			av := ActionView{Type: a.Type}
			for _, tgt := range a.Targets {
				av.Targets = append(av.Targets, int(tgt))
			}
			state.ValidActions = append(state.ValidActions, av)
		}
	}

	history := eng.History()
	if len(history) > 20 {
		history = history[len(history)-20:]
	}
	for _, ev := range history {
		state.Events = append(state.Events, EventView{Type: ev.Type, Data: ev.Data})
	}
	return state
}

func (c *Client) sendError(msg string) {
	response, _ := json.Marshal(WSMessage{Type: "error", Error: msg})
	select {
	case c.send <- response:
	default:
	}
}

func (c *Client) readPump(hub *Hub) {
	defer func() {
		hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			hub.log.Warn("malformed message", zap.Error(err))
			continue
		}

		hub.handleMessage(c, msg)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}

func serveWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
	}

	hub.register <- client

	go client.writePump()
	go client.readPump(hub)
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	defPath := flag.String("definition", "", "path to a game definition JSON (default: built-in Ember Duel)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.Logging.Development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var def *definition.GameDefinition
	if *defPath != "" {
		def, err = definition.Load(*defPath)
	} else {
		def, err = definition.Parse([]byte(emberDuel))
	}
	if err != nil {
		logger.Fatal("load game definition", zap.Error(err))
	}

	hub := newHub(def, cfg, logger)
	go hub.run()

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(hub, w, r)
	})

	logger.Info("websocket server starting",
		zap.String("addr", cfg.Server.Addr),
		zap.String("game", def.Name))

	if err := http.ListenAndServe(cfg.Server.Addr, nil); err != nil {
		logger.Fatal("listen and serve", zap.Error(err))
	}
}
