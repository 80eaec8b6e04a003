package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mevml/arbscan/scraper"
	"github.com/shopspring/decimal"
)

type dingContent struct {
	Content string `json:"content"`
}

type dingAt struct {
	IsAtAll bool `json:"isAtAll"`
}

type dingMessage struct {
	MsgType string      `json:"msgtype"`
	Text    dingContent `json:"text"`
	At      dingAt      `json:"at"`
}

type dingResult struct {
	ErrCode int64  `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Notifier pushes viable-opportunity alerts to a DingTalk webhook. An
// empty url disables it.
type Notifier struct {
	ctx    context.Context
	wg     sync.WaitGroup
	url    string
	client *http.Client
	data   chan *scraper.Opportunity
	alerts chan string
	log    *log.Logger
}

func NewNotifier(ctx context.Context, url string, logger *log.Logger) *Notifier {
	return &Notifier{
		ctx:    ctx,
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		data:   make(chan *scraper.Opportunity, 32),
		alerts: make(chan string, 8),
		log:    logger,
	}
}

func (n *Notifier) Start() {
	n.wg.Add(1)
	go n.listen()
}

func (n *Notifier) Stop() {
	n.wg.Wait()
}

func (n *Notifier) NotifyOpportunity(opp *scraper.Opportunity) {
	if n.url == "" {
		return
	}
	select {
	case n.data <- opp:
	default:
		n.log.Printf("notify queue full, drop alert for %s", opp.Pair)
	}
}

// Warn pushes a free-text operational alert.
func (n *Notifier) Warn(text string) {
	if n.url == "" {
		return
	}
	select {
	case n.alerts <- text:
	default:
	}
}

func (n *Notifier) listen() {
	defer n.wg.Done()
	for {
		select {
		case opp := <-n.data:
			n.tryNotify(opp)
		case text := <-n.alerts:
			if err := n.send(text); err != nil {
				n.log.Printf("notify err: %v", err)
			}
		case <-n.ctx.Done():
			return
		}
	}
}

func (n *Notifier) tryNotify(opp *scraper.Opportunity) {
	items := make([]string, 0)
	items = append(items, "arbitrage opportunity: ")
	items = append(items, fmt.Sprintf("pair: %s;", opp.Pair))
	items = append(items, fmt.Sprintf("route: %s -> %s;", opp.BuyDex, opp.SellDex))
	items = append(items, fmt.Sprintf("block: %d;", opp.BlockNumber))
	items = append(items, fmt.Sprintf("net profit: $%s;",
		decimal.NewFromFloat(opp.NetProfit).StringFixed(2)))
	items = append(items, fmt.Sprintf("viability: %s;",
		decimal.NewFromFloat(opp.ViabilityScore*100).StringFixed(1)+"%"))
	items = append(items, fmt.Sprintf("honeypot risk: %s;",
		decimal.NewFromFloat(opp.HoneypotRisk*100).StringFixed(1)+"%"))
	items = append(items, fmt.Sprintf("recommendation: %s;", opp.Recommendation))
	if err := n.send(strings.Join(items, "\n")); err != nil {
		n.log.Printf("notify err: %v", err)
	}
}

func (n *Notifier) send(text string) error {
	message := &dingMessage{
		MsgType: "text",
		Text:    dingContent{Content: text},
	}
	requestJson, _ := json.Marshal(message)
	req, err := http.NewRequest("POST", n.url, strings.NewReader(string(requestJson)))
	if err != nil {
		return err
	}
	req.Header.Set("Accepts", "application/json")
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("response status code: %d", resp.StatusCode)
	}
	respBody, _ := io.ReadAll(resp.Body)
	result := new(dingResult)
	if err := json.Unmarshal(respBody, result); err != nil {
		return err
	}
	if result.ErrCode != 0 || result.ErrMsg != "ok" {
		return fmt.Errorf("code: %d, err: %s", result.ErrCode, result.ErrMsg)
	}
	return nil
}
