package router

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/blues/cfledger/internal/handler"
	"github.com/blues/cfledger/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

var (
	creator  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	receiver = common.HexToAddress("0x0000000000000000000000000000000000000fee")
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	ledger *ledger.Ledger
	wallet *ledger.Wallet
	now    time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{t: t, wallet: ledger.NewWallet(), now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	l, err := ledger.New(
		ledger.Config{FeeBasisPoints: 250, FeeReceiver: receiver},
		s.wallet,
		ledger.WithClock(func() time.Time { return s.now }),
	)
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	s.wallet.Deposit(alice, big.NewInt(1_000_000))
	s.ledger = l
	s.engine = Setup(l, nil)
	return s
}

func (s *testServer) do(method, path string, caller common.Address, body interface{}) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != (common.Address{}) {
		req.Header.Set(handler.CallerHeader, caller.Hex())
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		s.t.Fatalf("%s %s: decode response %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

func (s *testServer) create(goal string) uint64 {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/v1/campaigns", creator, handler.CreateCampaignRequest{
		Goal: goal, Deadline: s.now.Add(24 * time.Hour).Unix(), MetadataCID: "bafy",
	})
	if code != http.StatusCreated {
		s.t.Fatalf("create: %d %s", code, env.Message)
	}
	var out handler.CreateCampaignResponse
	_ = json.Unmarshal(env.Data, &out)
	return out.ID
}

func campaignPath(id uint64, suffix string) string {
	return "/api/v1/campaigns/" + strconv.FormatUint(id, 10) + suffix
}

func TestCampaignLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id := s.create("1000")

	code, env := s.do(http.MethodPost, campaignPath(id, "/contributions"), alice, handler.ContributeRequest{Amount: "1000"})
	if code != http.StatusOK {
		t.Fatalf("contribute: %d %s", code, env.Message)
	}

	code, env = s.do(http.MethodGet, campaignPath(id, ""), common.Address{}, nil)
	if code != http.StatusOK {
		t.Fatalf("get: %d %s", code, env.Message)
	}
	var campaign handler.CampaignResponse
	_ = json.Unmarshal(env.Data, &campaign)
	if campaign.TotalFunded != "1000" || campaign.Status != "SUCCESSFUL" || campaign.State != "successful" || campaign.Contributors != 1 {
		t.Fatalf("campaign = %+v", campaign)
	}

	code, env = s.do(http.MethodPost, campaignPath(id, "/withdraw"), creator, nil)
	if code != http.StatusOK {
		t.Fatalf("withdraw: %d %s", code, env.Message)
	}
	var receipt handler.ReceiptResponse
	_ = json.Unmarshal(env.Data, &receipt)
	if receipt.Amount != "975" || receipt.Fee != "25" {
		t.Fatalf("receipt = %+v", receipt)
	}
	if got := s.wallet.BalanceOf(creator); got.Cmp(big.NewInt(975)) != 0 {
		t.Fatalf("creator balance = %s", got)
	}

	// 提款即关闭活动
	code, env = s.do(http.MethodPost, campaignPath(id, "/close"), creator, nil)
	if code != http.StatusConflict {
		t.Fatalf("close after withdraw: %d %s", code, env.Message)
	}
	code, env = s.do(http.MethodPost, campaignPath(id, "/fees/collect"), receiver, nil)
	if code != http.StatusOK {
		t.Fatalf("collect: %d %s", code, env.Message)
	}
	if got := s.wallet.BalanceOf(receiver); got.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("receiver balance = %s", got)
	}

	code, env = s.do(http.MethodGet, "/api/v1/campaigns/count", common.Address{}, nil)
	var count handler.CountResponse
	_ = json.Unmarshal(env.Data, &count)
	if code != http.StatusOK || count.Count != 1 {
		t.Fatalf("count: %d %+v", code, count)
	}

	code, env = s.do(http.MethodGet, "/api/v1/fees/receiver", common.Address{}, nil)
	var fee handler.FeeReceiverResponse
	_ = json.Unmarshal(env.Data, &fee)
	if code != http.StatusOK || fee.Receiver != receiver.Hex() || fee.FeeBasisPoints != 250 {
		t.Fatalf("fee receiver: %d %+v", code, fee)
	}
}

func TestRefundOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id := s.create("1000")

	if code, env := s.do(http.MethodPost, campaignPath(id, "/contributions"), alice, handler.ContributeRequest{Amount: "300"}); code != http.StatusOK {
		t.Fatalf("contribute: %d %s", code, env.Message)
	}

	code, env := s.do(http.MethodPost, campaignPath(id, "/refund"), alice, nil)
	if code != http.StatusConflict {
		t.Fatalf("early refund: %d %s", code, env.Message)
	}

	s.now = s.now.Add(48 * time.Hour)
	code, env = s.do(http.MethodGet, campaignPath(id, "/contributions/"+alice.Hex()), common.Address{}, nil)
	var contribution handler.ContributionResponse
	_ = json.Unmarshal(env.Data, &contribution)
	if code != http.StatusOK || contribution.Amount != "300" {
		t.Fatalf("contribution: %d %+v", code, contribution)
	}

	code, env = s.do(http.MethodPost, campaignPath(id, "/refund"), alice, nil)
	if code != http.StatusOK {
		t.Fatalf("refund: %d %s", code, env.Message)
	}
	if got := s.wallet.BalanceOf(alice); got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("alice balance = %s", got)
	}

	code, env = s.do(http.MethodGet, "/api/v1/campaigns?state=failed", common.Address{}, nil)
	var paged struct {
		Items      []handler.CampaignResponse `json:"items"`
		Pagination handler.Pagination         `json:"pagination"`
	}
	_ = json.Unmarshal(env.Data, &paged)
	if code != http.StatusOK || paged.Pagination.Total != 1 || paged.Items[0].ID != id {
		t.Fatalf("list failed: %d %+v", code, paged)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	id := s.create("10")

	tests := []struct {
		name    string
		method  string
		path    string
		caller  common.Address
		body    interface{}
		code    int
		message string
	}{
		{"missing caller", http.MethodPost, campaignPath(id, "/withdraw"), common.Address{}, nil, http.StatusBadRequest, "无效的调用方地址"},
		{"bad id", http.MethodGet, "/api/v1/campaigns/abc", common.Address{}, nil, http.StatusBadRequest, "无效的活动ID"},
		{"unknown campaign", http.MethodGet, campaignPath(99, ""), common.Address{}, nil, http.StatusNotFound, ""},
		{"not creator", http.MethodPost, campaignPath(id, "/withdraw"), alice, nil, http.StatusForbidden, "Only creator can withdraw"},
		{"zero amount", http.MethodPost, campaignPath(id, "/contributions"), alice, handler.ContributeRequest{Amount: "0"}, http.StatusBadRequest, ""},
		{"negative amount", http.MethodPost, campaignPath(id, "/contributions"), alice, handler.ContributeRequest{Amount: "-5"}, http.StatusBadRequest, "无效的贡献金额"},
		{"nothing to refund", http.MethodPost, campaignPath(id, "/refund"), alice, nil, http.StatusConflict, ""},
		{"fees before close", http.MethodPost, campaignPath(id, "/fees/collect"), receiver, nil, http.StatusConflict, "Campaign must be closed to collect fees"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(tt.method, tt.path, tt.caller, tt.body)
			if code != tt.code || env.Success {
				t.Fatalf("got %d %+v, want %d", code, env, tt.code)
			}
			if tt.message != "" && env.Message != tt.message {
				t.Fatalf("message = %q, want %q", env.Message, tt.message)
			}
		})
	}
}

func TestTransferFailureIsBadGateway(t *testing.T) {
	s := newTestServer(t)
	id := s.create("10")
	if _, err := s.ledger.Contribute(context.Background(), alice, id, big.NewInt(10), ""); err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	s.wallet.Reject = func(common.Address, *big.Int) error { return ledger.ErrWalletUnavailable }

	code, _ := s.do(http.MethodPost, campaignPath(id, "/withdraw"), creator, nil)
	if code != http.StatusBadGateway {
		t.Fatalf("code = %d, want 502", code)
	}
	c, _ := s.ledger.GetCampaign(context.Background(), id)
	if c.Withdrawn {
		t.Fatalf("failed withdrawal left campaign withdrawn")
	}
}

func TestPaymentRejectedOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id := s.create("5000000")
	broke := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	code, env := s.do(http.MethodPost, campaignPath(id, "/contributions"), broke, handler.ContributeRequest{Amount: "10"})
	if code != http.StatusPaymentRequired {
		t.Fatalf("unfunded contribution: %d %s", code, env.Message)
	}

	body := handler.ContributeRequest{Amount: "10", PaymentTx: "deposit-7"}
	if code, env := s.do(http.MethodPost, campaignPath(id, "/contributions"), alice, body); code != http.StatusOK {
		t.Fatalf("contribute: %d %s", code, env.Message)
	}
	code, env = s.do(http.MethodPost, campaignPath(id, "/contributions"), alice, body)
	if code != http.StatusPaymentRequired || env.Message != "Payment already applied" {
		t.Fatalf("reused payment: %d %s", code, env.Message)
	}

	c, _ := s.ledger.GetCampaign(context.Background(), id)
	if c.TotalFunded.Int64() != 10 || s.wallet.EscrowBalance().Int64() != 10 {
		t.Fatalf("funded=%s escrow=%s", c.TotalFunded, s.wallet.EscrowBalance())
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
}
