// Package sink holds the clients that durably persist tracking events:
// a Google Sheets appender and a generic JSON webhook poster.
package sink

import "context"

// Client is the append contract the dispatcher depends on. Each row is an
// ordered field sequence matching the destination table's column order.
type Client interface {
	Append(ctx context.Context, table string, rows [][]string) error
}

// Notifier posts a single audit payload to the sink endpoint, outside the
// batched pipeline. Used for unsubscribe page views and confirmations.
type Notifier interface {
	Post(ctx context.Context, payload map[string]interface{}) error
}
