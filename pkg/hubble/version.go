package hubble

// Version information for the hubble client.
const (
	// Version is the current version of the hubble client.
	Version = "1.0.0"

	// ClientName identifies this client in the User-Agent header.
	ClientName = "hubble-client-go"
)

// UserAgent is sent with every request.
const UserAgent = ClientName + "/" + Version
