package models

type ValidateAddressRequest struct {
	Address string `json:"address"`
}
