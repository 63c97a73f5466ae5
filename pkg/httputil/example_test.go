package httputil_test

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/hedgefund/pkg/httputil"
	"github.com/wonny/hedgefund/pkg/logger"
)

// Example demonstrates calling a JSON service with retries
func Example() {
	client := httputil.New(logger.Nop(), 10*time.Second).WithRetry(2, 200*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out map[string]interface{}
	err := client.PostJSONDecode(ctx, "http://localhost:8000/decide", map[string]interface{}{
		"tickers": []string{"AAPL"},
	}, &out)
	if err != nil {
		fmt.Println("decision service unavailable")
		return
	}
	fmt.Println(out["decisions"])
}
