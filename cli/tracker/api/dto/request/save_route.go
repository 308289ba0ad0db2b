package request

type SaveRoute struct {
	Name string `json:"name"`
}
