//nolint:errcheck,forbidigo,gosec // test utility allows simpler error handling and direct output
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
)

// testserver imitates the upstream price feeds so the bot can be run locally with
// NAVASAN_URL, BONBAST_URL, BINANCE_URL and COINGECKO_URL pointed at it.
func main() {
	port := flag.Int("port", 8081, "Port to listen on")
	usd := flag.String("usd", "58,000", "USD sell price in toman")
	gold := flag.String("gold18", "3,850,000", "18k gold gram price in toman")
	btc := flag.String("btc", "67234.50", "BTC price in USD")
	delay := flag.Duration("delay", 0, "Delay applied to every response, use it to provoke timeouts")
	status := flag.Int("status", http.StatusOK, "Status code returned by every feed")
	bonbastPage := flag.String("bonbast", "", "Optional HTML file served as the bonbast page")
	flag.Parse()

	if *bonbastPage != "" {
		if _, err := os.Stat(*bonbastPage); os.IsNotExist(err) {
			log.Fatalf("Bonbast page does not exist: %s", *bonbastPage)
		}
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(*delay)
			if *status != http.StatusOK {
				http.Error(w, http.StatusText(*status), *status)
				log.Printf("%s %s -> %d", r.Method, r.URL.Path, *status)
				return
			}
			next.ServeHTTP(w, r)
			log.Printf("%s %s", r.Method, r.URL.String())
		})
	})

	r.Get("/navasan/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") == "" {
			http.Error(w, "api_key is required", http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{
			"usd":     map[string]string{"value": *usd},
			"geram18": map[string]string{"value": *gold},
		})
	})

	r.Get("/bonbast/", func(w http.ResponseWriter, _ *http.Request) {
		if *bonbastPage != "" {
			serveHTMLFile(w, *bonbastPage)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><body><table>
<tr><td>USD</td><td id="usd1">%s</td></tr>
<tr><td>Gold 18</td><td id="gol18">%s</td></tr>
</table></body></html>`, *usd, *gold)
	})

	r.Get("/binance/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{
			"symbol": r.URL.Query().Get("symbol"),
			"price":  *btc,
		})
	})

	r.Get("/coingecko/simple/price", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]map[string]json.Number{
			r.URL.Query().Get("ids"): {"usd": json.Number(*btc)},
		})
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Test feeds listening on %s", addr)
	log.Printf("NAVASAN_URL=http://localhost%s/navasan/", addr)
	log.Printf("BONBAST_URL=http://localhost%s/bonbast/", addr)
	log.Printf("BINANCE_URL=http://localhost%s/binance/api/v3/ticker/price", addr)
	log.Printf("COINGECKO_URL=http://localhost%s/coingecko/simple/price", addr)

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func serveHTMLFile(w http.ResponseWriter, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read file: %v", err), http.StatusInternalServerError)
		log.Printf("Error reading %s: %v", path, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(content)
	log.Printf("Served %s (%d bytes)", path, len(content))
}
