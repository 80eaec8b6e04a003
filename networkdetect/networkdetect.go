package networkdetect

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-ping/ping"
	"github.com/mevml/arbscan/notify"
)

// latency above this stalls the research collaborator noticeably
const slowRtt = 500 * time.Millisecond

const notifyInterval = 5 * 60 // seconds

// NetworkDetector probes the research API hosts. The pipeline consumer
// blocks on research calls, so degraded upstream latency shows up here
// before it shows up as a stalled queue.
type NetworkDetector struct {
	ctx      context.Context
	wg       sync.WaitGroup
	hosts    []string
	notifier *notify.Notifier
	logger   *log.Logger
}

func NewNetworkDetector(ctx context.Context, hosts []string, notifier *notify.Notifier, logger *log.Logger) *NetworkDetector {
	return &NetworkDetector{
		ctx:      ctx,
		hosts:    hosts,
		notifier: notifier,
		logger:   logger,
	}
}

func (nd *NetworkDetector) Start() {
	nd.wg.Add(1)
	go nd.detect()
}

func (nd *NetworkDetector) Stop() {
	nd.wg.Wait()
}

func (nd *NetworkDetector) detect() {
	defer nd.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	notifyTime := int64(0)
	for {
		select {
		case <-ticker.C:
			for _, host := range nd.hosts {
				rtt, err := probe(host)
				if err != nil {
					nd.logger.Printf("probe %s err: %v", host, err)
					continue
				}
				nd.logger.Printf("probe %s rtt: %dms", host, rtt.Milliseconds())
				if rtt <= slowRtt {
					continue
				}
				now := time.Now().Unix()
				if now-notifyTime > notifyInterval {
					nd.notifier.Warn(fmt.Sprintf("research host %s rtt: %dms;\ntime: %s;",
						host, rtt.Milliseconds(), time.Now().Format("2006-01-02 15:04:05")))
					notifyTime = now
				}
			}
		case <-nd.ctx.Done():
			return
		}
	}
}

func probe(host string) (time.Duration, error) {
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return 0, err
	}
	pinger.Count = 3
	pinger.Timeout = 10 * time.Second
	pinger.Run()
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, fmt.Errorf("no reply from %s", host)
	}
	return stats.AvgRtt, nil
}
