package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// stats 从 runner 日志汇总的成交与对冲盈亏
type stats struct {
	fills        int
	buyNotional  float64
	sellNotional float64
	hedged       float64
	residual     float64
	grossUSD     float64
	feesUSD      float64
	netUSD       float64
	hedgeErrors  int
}

func (s *stats) addFill(side string, px, sz float64) {
	if px <= 0 || sz <= 0 {
		return
	}
	s.fills++
	switch strings.ToLower(side) {
	case "buy":
		s.buyNotional += px * sz
	case "sell":
		s.sellNotional += px * sz
	}
}

func (s *stats) addHedge(evt map[string]interface{}) {
	s.hedged += toFloat(evt["hedged"])
	s.residual += toFloat(evt["residual"])
	s.grossUSD += toFloat(evt["gross_usd"])
	s.feesUSD += toFloat(evt["fees_usd"])
	s.netUSD += toFloat(evt["net_usd"])
}

// scan 逐行解析 JSON 日志；非 JSON 行和其他交易对的记录跳过。
func scan(r io.Reader, symbol string, since time.Time) (stats, error) {
	var st stats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, "{")
		if idx == -1 {
			continue
		}
		var evt map[string]interface{}
		if err := json.Unmarshal([]byte(line[idx:]), &evt); err != nil {
			continue
		}
		if symbol != "" {
			if sym, ok := evt["symbol"].(string); ok && sym != symbol {
				continue
			}
		}
		if !since.IsZero() {
			if tsStr, ok := evt["ts"].(string); ok {
				if ts, err := time.Parse(time.RFC3339Nano, tsStr); err == nil && ts.Before(since) {
					continue
				}
			}
		}

		msg, _ := evt["msg"].(string)
		event, _ := evt["event"].(string)
		switch {
		case msg == "fill_event" && event == "received":
			side, _ := evt["side"].(string)
			st.addFill(side, toFloat(evt["px"]), toFloat(evt["sz"]))
		case msg == "hedge_event" && event == "completed":
			st.addHedge(evt)
		case msg == "error_event" && evt["op"] == "hedge":
			st.hedgeErrors++
		}
	}
	return st, scanner.Err()
}

func main() {
	logPath := flag.String("log", "/var/log/cross-venue-mm/runner.log", "runner 日志路径")
	symbol := flag.String("symbol", "", "仅统计指定交易对 (默认全量)")
	sinceStr := flag.String("since", "", "仅统计此时间之后的记录 (RFC3339，例如 2025-11-22T00:00:00Z)")
	flag.Parse()

	var since time.Time
	if *sinceStr != "" {
		var err error
		since, err = time.Parse(time.RFC3339Nano, *sinceStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "解析 since 参数失败: %v\n", err)
			os.Exit(1)
		}
	}

	f, err := os.Open(*logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法读取日志: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	st, err := scan(f, *symbol, since)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取日志出错: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("统计文件: %s\n", *logPath)
	if *symbol != "" {
		fmt.Printf("交易对: %s\n", *symbol)
	}
	if !since.IsZero() {
		fmt.Printf("起始时间: %s\n", since.Format(time.RFC3339))
	}
	fmt.Printf("做市成交笔数: %d\n", st.fills)
	fmt.Printf("买入名义: %.4f USD\n", st.buyNotional)
	fmt.Printf("卖出名义: %.4f USD\n", st.sellNotional)
	fmt.Printf("已对冲数量: %.6f\n", st.hedged)
	fmt.Printf("未对冲数量: %.6f\n", st.residual)
	fmt.Printf("对冲失败次数: %d\n", st.hedgeErrors)
	fmt.Printf("毛利: %.6f USD\n", st.grossUSD)
	fmt.Printf("手续费: %.6f USD\n", st.feesUSD)
	fmt.Printf("净利: %.6f USD\n", st.netUSD)
}

func toFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}
