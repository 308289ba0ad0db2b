package request

type Discard struct {
	Confirmed bool `json:"confirmed"`
}
