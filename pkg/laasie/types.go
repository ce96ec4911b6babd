package laasie

// SfmcS2SPayload carries the server-to-server credentials of an SFMC
// installed package to the partner API.
type SfmcS2SPayload struct {
	CID       string `json:"CID"`
	CSecret   string `json:"CSecret"`
	Email     string `json:"Email"`
	MID       int    `json:"MID"`
	SubDomain string `json:"SubDomain"`
}
