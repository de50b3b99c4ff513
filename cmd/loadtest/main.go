package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Kind   string
	Err    error
}

type lineItem struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

type orderRequest struct {
	Items           []lineItem        `json:"items"`
	ShippingAddress map[string]string `json:"shipping_address"`
	PaymentMethod   string            `json:"payment_method"`
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	productID := flag.Int("product", 1, "product id")
	method := flag.String("method", "cod", "payment method: cod or razorpay")

	// 超卖测试参数：200 个会话并发下单同一商品
	nSessions := flag.Int("sessions", 200, "distinct sessions")
	concurrency := flag.Int("c", 50, "max concurrency")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	before, err := getStock(client, *baseURL, *productID)
	if err != nil {
		panic(fmt.Sprintf("read stock failed: %v", err))
	}
	fmt.Printf("initial stock: %d\n", before)

	// 1) 不超卖测试：不同会话并发，成功数不能超过初始库存
	fmt.Printf("start oversell test: product=%d sessions=%d concurrency=%d\n", *productID, *nSessions, *concurrency)
	results := run(*nSessions, *concurrency, func(idx int) Result {
		return orderOnce(client, *baseURL, fmt.Sprintf("loadtest-%d", idx), *productID, *method)
	})
	printSummary("oversell", results)

	after, err := getStock(client, *baseURL, *productID)
	if err != nil {
		fmt.Println("stock check err:", err)
	} else {
		sold := 0
		for _, r := range results {
			if r.Status == http.StatusOK {
				sold++
			}
		}
		fmt.Printf("final stock: %d, orders: %d, consistent: %v\n", after, sold, after >= 0 && before-after == int64(sold))
	}

	// 2) 限流测试：同一会话重复下单，超过 CHECKOUT_RATE_LIMIT 后返回 429
	fmt.Println("\nstart rate limit test: same session, 50 requests, concurrency 50")
	results2 := run(50, 50, func(int) Result {
		return orderOnce(client, *baseURL, "loadtest-same", *productID, *method)
	})
	printSummary("rate_limit", results2)
}

func run(total, concurrency int, fn func(idx int) Result) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = fn(idx)
		}(i)
	}

	wg.Wait()
	return results
}

func orderOnce(client *http.Client, baseURL, sessionID string, productID int, method string) Result {
	b, _ := json.Marshal(orderRequest{
		Items: []lineItem{{ProductID: productID, Quantity: 1}},
		ShippingAddress: map[string]string{
			"full_name":     "Load Test",
			"email":         sessionID + "@example.com",
			"phone":         "9999999999",
			"address_line1": "1 Test Street",
			"city":          "Mumbai",
			"state":         "MH",
			"pincode":       "400001",
		},
		PaymentMethod: method,
	})
	httpReq, _ := http.NewRequest(http.MethodPost, baseURL+"/api/orders", bytes.NewReader(b))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Session-ID", sessionID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	var out struct {
		Kind string `json:"kind"`
	}
	_ = json.Unmarshal(body, &out)
	return Result{Status: resp.StatusCode, Kind: out.Kind}
}

// printSummary 聚合输出不同状态码与错误类型分布。
func printSummary(name string, results []Result) {
	count := map[string]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		key := fmt.Sprintf("%d", r.Status)
		if r.Kind != "" {
			key += " " + r.Kind
		}
		count[key]++
	}
	keys := make([]string, 0, len(count))
	for k := range count {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("[%s] http status summary:\n", name)
	for _, k := range keys {
		fmt.Printf("  %s -> %d\n", k, count[k])
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

// getStock 查询商品当前库存，用于压测后校验是否出现超卖。
func getStock(client *http.Client, baseURL string, productID int) (int64, error) {
	resp, err := client.Get(fmt.Sprintf("%s/api/products/%d", baseURL, productID))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		Code int `json:"code"`
		Data struct {
			Stock int64 `json:"stock"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return 0, err
	}
	return out.Data.Stock, nil
}
