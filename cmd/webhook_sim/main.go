package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"ferrylink/internal/payments"
	"ferrylink/internal/shared/config"
	"ferrylink/internal/shared/middleware"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

type SimResult struct {
	Scenario     string        `json:"scenario"`
	HTTPStatus   int           `json:"http_status"`
	Outcome      string        `json:"outcome"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
}

type SimSuite struct {
	BaseURL   string
	ServerKey string
	client    *http.Client

	mu      sync.Mutex
	Results []SimResult
}

// webhook_sim replays gateway delivery patterns against a running server:
// duplicate bursts, out-of-order statuses and forged signatures.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	orderID := flag.String("order", "ORD-101", "seeded order id to notify")
	amount := flag.String("amount", "150000.00", "gross_amount exactly as the gateway sends it")
	burst := flag.Int("burst", 10, "concurrent duplicate deliveries")
	flag.Parse()

	suite := &SimSuite{
		BaseURL:   fmt.Sprintf("http://localhost:%s%s", cfg.Port, cfg.GetAPIBasePath()),
		ServerKey: cfg.Webhook.ServerKey,
		client:    &http.Client{Timeout: 30 * time.Second},
	}

	fmt.Println("🧪 Starting webhook delivery simulation...")
	fmt.Println("==========================================")

	fmt.Printf("\n🔍 Forged signature for %s\n", *orderID)
	forged := suite.notification(*orderID, *amount, "settlement")
	forged.SignatureKey = payments.ComputeSignature(forged.OrderID, forged.StatusCode, forged.GrossAmount, "wrong-key")
	suite.send("forged_signature", forged)

	fmt.Printf("\n🔍 Burst of %d identical settlements\n", *burst)
	settlement := suite.notification(*orderID, *amount, "settlement")
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < *burst; i++ {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			suite.send("duplicate_burst", settlement)
			return nil
		})
	}
	_ = g.Wait()

	fmt.Printf("\n🔍 Stale pending after settlement\n")
	suite.send("out_of_order", suite.notification(*orderID, *amount, "pending"))

	suite.generateReport()
	suite.printEvents(cfg, *orderID)

	fmt.Println("\n🎉 Simulation complete!")
}

func (s *SimSuite) notification(orderID, amount, status string) *payments.Notification {
	n := &payments.Notification{
		OrderID:           orderID,
		StatusCode:        "200",
		GrossAmount:       amount,
		TransactionStatus: status,
		PaymentType:       "bank_transfer",
		TransactionID:     uuid.NewString(),
		VANumbers:         []payments.VANumber{{Bank: "bca", VANumber: "8808000101"}},
	}
	if status == "settlement" {
		n.SettlementTime = time.Now().In(time.FixedZone("WIB", 7*3600)).Format(payments.SettlementTimeLayout)
	}
	n.SignatureKey = payments.ComputeSignature(n.OrderID, n.StatusCode, n.GrossAmount, s.ServerKey)
	return n
}

func (s *SimSuite) send(scenario string, n *payments.Notification) {
	result := SimResult{Scenario: scenario}
	defer func() {
		s.mu.Lock()
		s.Results = append(s.Results, result)
		s.mu.Unlock()
		s.print(result)
	}()

	body, err := json.Marshal(n)
	if err != nil {
		result.Error = err.Error()
		return
	}

	start := time.Now()
	resp, err := s.client.Post(s.BaseURL+"/payments/notification", "application/json", bytes.NewReader(body))
	result.ResponseTime = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return
	}
	defer resp.Body.Close()
	result.HTTPStatus = resp.StatusCode

	var envelope struct {
		Data payments.WebhookAck `json:"data"`
	}
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &envelope); err == nil {
		result.Outcome = string(envelope.Data.Outcome)
		if envelope.Data.Queued {
			result.Outcome = "queued"
		}
	}
	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
}

func (s *SimSuite) print(r SimResult) {
	icon := "✅"
	if r.HTTPStatus != http.StatusOK {
		icon = "🛑"
	}
	fmt.Printf("   %s [%s] HTTP %d outcome=%s %v %s\n", icon, r.Scenario, r.HTTPStatus, r.Outcome, r.ResponseTime, r.Error)
}

func (s *SimSuite) generateReport() {
	fmt.Println("\n📊 DELIVERY REPORT")
	fmt.Println("==================")

	counts := map[string]int{}
	var total time.Duration
	for _, r := range s.Results {
		key := r.Scenario + " -> " + r.Outcome
		if r.Outcome == "" {
			key = fmt.Sprintf("%s -> HTTP %d", r.Scenario, r.HTTPStatus)
		}
		counts[key]++
		total += r.ResponseTime
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-40s %d\n", k, counts[k])
	}
	if len(s.Results) > 0 {
		fmt.Printf("Average response time: %v\n", total/time.Duration(len(s.Results)))
	}
}

// printEvents shows the audit trail through the admin API
func (s *SimSuite) printEvents(cfg *config.Config, orderID string) {
	token, err := middleware.SignAccessToken(cfg.JWT.Secret, uuid.NewString(), "sim@ferrylink.local", middleware.RoleAdmin, time.Minute)
	if err != nil {
		log.Printf("Failed to mint admin token: %v", err)
		return
	}

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/admin/payments/%s/events", s.BaseURL, orderID), nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("Failed to fetch events: %v", err)
		return
	}
	defer resp.Body.Close()

	var envelope struct {
		Data struct {
			Events []payments.PaymentEventResponse `json:"events"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		log.Printf("Failed to decode events: %v", err)
		return
	}

	fmt.Printf("\n🧾 Audit trail for %s (%d events)\n", orderID, len(envelope.Data.Events))
	for _, e := range envelope.Data.Events {
		line := fmt.Sprintf("   %s %-15s", e.CreatedAt.Format(time.RFC3339), e.Type)
		if e.PreviousStatus != "" || e.NewStatus != "" {
			line += fmt.Sprintf(" %s -> %s", e.PreviousStatus, e.NewStatus)
		}
		if e.ErrorMessage != "" {
			line += " error=" + e.ErrorMessage
		}
		fmt.Println(line)
	}
}
