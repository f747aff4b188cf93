// Command badger_inspect dumps the store for debugging. Pick a prefix to
// browse one collection: chat:, dm:, dmu:, user:, post:, report:.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "/tmp/trenchsocial", "Path to badger DB")
	prefix := flag.String("prefix", "chat:", "Prefix to scan")
	limit := flag.Int("limit", 200, "Max rows to print")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(
		fmt.Sprintf(" %s / prefix %q ", *dbPath, *prefix)))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "At", "Who", "Body"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes) && rows < *limit; it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				table.Append(row(string(item.Key()), v))
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	fmt.Printf("%d row(s)\n", rows)
}

// row renders one record generically: values are JSON documents, so the
// interesting fields are picked by name whatever the collection.
func row(key string, value []byte) []string {
	// dmu: index entries hold a primary key, not a document.
	if strings.HasPrefix(key, "dmu:") || strings.HasPrefix(key, "userid:") {
		return []string{key, "", "", "-> " + string(value)}
	}

	var doc map[string]any
	if err := json.Unmarshal(value, &doc); err != nil {
		return []string{key, "", "", fmt.Sprintf("unreadable: %v", err)}
	}

	at := firstString(doc, "publishedAt", "sentAt", "createdAt", "date")
	if parsed, err := time.Parse(time.RFC3339Nano, at); err == nil {
		at = parsed.Format("2006-01-02 15:04:05")
	}
	who := firstString(doc, "author", "username", "senderId")
	body := firstString(doc, "body", "content", "text", "message", "name")
	if len(body) > 60 {
		body = body[:60] + "..."
	}
	return []string{key, at, who, body}
}

func firstString(doc map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := doc[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)
	return badger.Open(opts)
}
