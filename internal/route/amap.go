package route

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "net/url"
    "strconv"
    "strings"
    "time"
)

const defaultAmapBase = "https://restapi.amap.com/v3/direction/driving"

// AmapClient calls the Amap driving-directions REST API.
type AmapClient struct {
    Key     string
    BaseURL string
    HTTP    *http.Client
}

func NewAmapClient(key string) *AmapClient {
    return &AmapClient{
        Key:     key,
        BaseURL: defaultAmapBase,
        HTTP:    &http.Client{Timeout: 10 * time.Second},
    }
}

type amapResponse struct {
    Status string `json:"status"`
    Info   string `json:"info"`
    Route  struct {
        Paths []struct {
            Distance string `json:"distance"`
            Duration string `json:"duration"`
            Steps    []struct {
                Polyline string `json:"polyline"`
            } `json:"steps"`
        } `json:"paths"`
    } `json:"route"`
}

func (c *AmapClient) Directions(ctx context.Context, origin, destination string) (Leg, error) {
    q := url.Values{}
    q.Set("key", c.Key)
    q.Set("origin", origin)
    q.Set("destination", destination)
    q.Set("extensions", "base")

    base := c.BaseURL
    if base == "" {
        base = defaultAmapBase
    }
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
    if err != nil {
        return Leg{}, err
    }
    resp, err := c.HTTP.Do(req)
    if err != nil {
        return Leg{}, err
    }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK {
        return Leg{}, fmt.Errorf("route: directions status %d", resp.StatusCode)
    }

    var body amapResponse
    if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
        return Leg{}, err
    }
    if body.Status != "1" {
        return Leg{}, fmt.Errorf("route: directions rejected: %s", body.Info)
    }
    if len(body.Route.Paths) == 0 {
        return Leg{}, ErrNoRoute
    }

    path := body.Route.Paths[0]
    dist, err := strconv.Atoi(path.Distance)
    if err != nil {
        return Leg{}, fmt.Errorf("route: bad distance %q: %w", path.Distance, err)
    }
    dur, err := strconv.Atoi(path.Duration)
    if err != nil {
        return Leg{}, fmt.Errorf("route: bad duration %q: %w", path.Duration, err)
    }

    var sb strings.Builder
    for _, step := range path.Steps {
        if step.Polyline == "" {
            continue
        }
        if sb.Len() > 0 {
            sb.WriteString(";")
        }
        sb.WriteString(step.Polyline)
    }
    poly := sb.String()
    if poly == "" {
        return Leg{}, ErrNoRoute
    }
    // The provider's last step can stop short of the requested point.
    if !strings.HasSuffix(poly, destination) {
        poly += ";" + destination
    }
    return Leg{Distance: dist, Duration: dur, Polyline: poly}, nil
}
