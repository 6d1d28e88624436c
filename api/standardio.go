package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"mealtrack/client/app"
	"mealtrack/client/remote"
	"mealtrack/client/types"
)

// Request is the envelope a shell writes to stdin when it runs the core as a
// child process instead of talking to the REST facade.
type Request struct {
	Type      string          `json:"type"`
	Method    string          `json:"method"`
	Endpoint  string          `json:"endpoint"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"requestId"`
}

// Response is the reply envelope written to stdout.
type Response struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"requestId"`
}

type StandardIOHandler struct {
	app    *app.App
	client *remote.Client
}

// NewStandardIOHandler creates the stdio surface over the same app the REST
// facade wraps.
func NewStandardIOHandler(application *app.App, client *remote.Client) *StandardIOHandler {
	return &StandardIOHandler{
		app:    application,
		client: client,
	}
}

// Start reads newline-delimited JSON requests from stdin until EOF.
func (h *StandardIOHandler) Start() {
	log.Println("StandardIO handler started - waiting for input")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		h.HandleInput(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Error reading standard input: %v", err)
	}
}

// HandleInput processes one request line and writes the response envelope.
func (h *StandardIOHandler) HandleInput(input string) {
	var request Request
	if err := json.Unmarshal([]byte(input), &request); err != nil {
		h.sendErrorResponse("Invalid JSON request format", "")
		return
	}

	if request.Type != "request" {
		h.sendErrorResponse("Invalid request type", request.RequestID)
		return
	}

	data, err := h.processRequest(request)
	if err != nil {
		h.sendErrorResponse(err.Error(), request.RequestID)
		return
	}

	h.sendResponse(data, request.RequestID)
}

func (h *StandardIOHandler) processRequest(request Request) (interface{}, error) {
	ctx := context.Background()

	switch request.Endpoint {
	case "/session/login":
		var req types.LoginRequest
		if err := json.Unmarshal(request.Data, &req); err != nil {
			return nil, fmt.Errorf("invalid login data: %w", err)
		}
		creds, err := h.client.ObtainToken(ctx, req.Username, req.Password)
		if err != nil {
			return nil, err
		}
		if err := h.app.Session.Login(*creds); err != nil {
			return nil, err
		}
		if err := h.app.LoadAll(ctx); err != nil {
			return nil, err
		}
		return h.app.Session.Snapshot(), nil

	case "/session/logout":
		h.app.Logout()
		return map[string]string{"message": "Logged out"}, nil

	case "/session/status":
		return h.app.Session.Snapshot(), nil

	case "/session/register":
		var req types.RegisterRequest
		if err := json.Unmarshal(request.Data, &req); err != nil {
			return nil, fmt.Errorf("invalid registration data: %w", err)
		}
		if err := h.client.Register(ctx, req.Email, req.Username, req.Password); err != nil {
			return nil, err
		}
		return map[string]string{"message": "Account created"}, nil
	}

	// Everything below reads or mutates loaded data.
	if !h.app.Ready() {
		return nil, fmt.Errorf("client data is not loaded")
	}

	switch request.Endpoint {
	case "/catalog/items":
		return h.app.Catalog.Items(), nil

	case "/catalog/foods":
		var req types.CreateFoodRequest
		if err := json.Unmarshal(request.Data, &req); err != nil {
			return nil, fmt.Errorf("invalid food data: %w", err)
		}
		return h.app.Catalog.CreateFood(ctx, req)

	case "/catalog/meals":
		var req types.CreateMealRequest
		if err := json.Unmarshal(request.Data, &req); err != nil {
			return nil, fmt.Errorf("invalid meal data: %w", err)
		}
		return h.app.Catalog.CreateMeal(ctx, req)

	case "/catalog/meal-nutrition":
		var req struct {
			MealID int64 `json:"meal_id"`
		}
		if err := json.Unmarshal(request.Data, &req); err != nil {
			return nil, fmt.Errorf("invalid meal id: %w", err)
		}
		return h.app.Catalog.MealNutrition(req.MealID)

	case "/log/entries":
		date, err := parseRequestDate(request.Data)
		if err != nil {
			return nil, err
		}
		return h.app.Log.EntriesForDate(date), nil

	case "/log/totals":
		date, err := parseRequestDate(request.Data)
		if err != nil {
			return nil, err
		}
		return h.app.Log.TotalsForDate(date), nil

	case "/log/add":
		var req types.AddLogEntryRequest
		if err := json.Unmarshal(request.Data, &req); err != nil {
			return nil, fmt.Errorf("invalid log entry data: %w", err)
		}
		var date time.Time
		if req.Date != "" {
			var err error
			if date, err = time.ParseInLocation("2006-01-02", req.Date, time.Local); err != nil {
				return nil, fmt.Errorf("invalid date format: use YYYY-MM-DD")
			}
		}
		return h.app.Log.AddEntry(ctx, req.ItemID, req.Quantity, date)

	case "/log/remove":
		var req struct {
			ActionID int64 `json:"action_id"`
		}
		if err := json.Unmarshal(request.Data, &req); err != nil {
			return nil, fmt.Errorf("invalid action id: %w", err)
		}
		if err := h.app.Log.RemoveEntry(ctx, req.ActionID); err != nil {
			return nil, err
		}
		return map[string]string{"message": "Log entry removed"}, nil

	case "/log/navigate":
		var req struct {
			OffsetDays int `json:"offset_days"`
		}
		if err := json.Unmarshal(request.Data, &req); err != nil {
			return nil, fmt.Errorf("invalid offset: %w", err)
		}
		selected := h.app.Log.ChangeDate(req.OffsetDays)
		return map[string]string{"selected_date": selected.Format("2006-01-02")}, nil

	case "/pantry":
		return h.app.Ledger.Snapshot(), nil

	case "/pantry/add":
		var req types.PantryAmountRequest
		if err := json.Unmarshal(request.Data, &req); err != nil {
			return nil, fmt.Errorf("invalid pantry data: %w", err)
		}
		if err := h.app.Ledger.Add(ctx, req.ItemID, req.Quantity); err != nil {
			return nil, err
		}
		return map[string]float64{"available": h.app.Ledger.Quantity(req.ItemID)}, nil

	case "/pantry/dispose":
		var req types.PantryAmountRequest
		if err := json.Unmarshal(request.Data, &req); err != nil {
			return nil, fmt.Errorf("invalid pantry data: %w", err)
		}
		if err := h.app.Ledger.Dispose(ctx, req.ItemID, req.Quantity); err != nil {
			return nil, err
		}
		return map[string]float64{"available": h.app.Ledger.Quantity(req.ItemID)}, nil

	case "/pantry/cook":
		var req types.CookMealRequest
		if err := json.Unmarshal(request.Data, &req); err != nil {
			return nil, fmt.Errorf("invalid cook data: %w", err)
		}
		if err := h.app.Ledger.CookMeal(ctx, req.MealID, req.Quantities); err != nil {
			return nil, err
		}
		return map[string]string{"message": "Meal cooked"}, nil

	case "/pantry/recommendations":
		return h.app.Ledger.Recommendations(ctx)

	case "/goals":
		if request.Method == "POST" {
			var goal types.Goal
			if err := json.Unmarshal(request.Data, &goal); err != nil {
				return nil, fmt.Errorf("invalid goal data: %w", err)
			}
			return h.app.Goals.Update(ctx, goal)
		}
		return h.app.Goals.Current(), nil

	default:
		return nil, fmt.Errorf("unknown endpoint: %s", request.Endpoint)
	}
}

func parseRequestDate(data json.RawMessage) (time.Time, error) {
	var req struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return time.Time{}, fmt.Errorf("invalid date request: %w", err)
	}
	if req.Date == "" {
		return time.Now(), nil
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: use YYYY-MM-DD")
	}
	return date, nil
}

func (h *StandardIOHandler) sendResponse(data interface{}, requestID string) {
	response := Response{
		Type:      "response",
		Data:      data,
		RequestID: requestID,
	}
	if err := json.NewEncoder(os.Stdout).Encode(response); err != nil {
		log.Printf("Error encoding response for request %s: %v", requestID, err)
	}
}

func (h *StandardIOHandler) sendErrorResponse(message, requestID string) {
	response := Response{
		Type: "response",
		Data: map[string]interface{}{
			"error": map[string]string{
				"message": message,
				"code":    "CLIENT_ERROR",
			},
		},
		RequestID: requestID,
	}
	if err := json.NewEncoder(os.Stdout).Encode(response); err != nil {
		log.Printf("Error encoding error response for request %s: %v", requestID, err)
		fmt.Printf(`{"type":"response","data":{"error":{"message":"Internal error","code":"INTERNAL_ERROR"}},"requestId":"%s"}`+"\n", requestID)
	}
}
