package config

const WalletConfigTemplate = `addressbook_path = "{{ .AddressBookPath }}"
seeds = [{{ range $i, $s := .Seeds }}{{ if $i }}, {{ end }}"{{ $s }}"{{ end }}]
stargate = "{{ .Stargate }}"
default_port = {{ .DefaultPort }}
lcd_url = "{{ .LcdUrl }}"
signer_url = "{{ .SignerUrl }}"
chain_id = "{{ .ChainId }}"
gas = "{{ .Gas }}"

discovery_timeout = {{ .DiscoveryTimeout }}
reconnect_delay = {{ .ReconnectDelay }}
subscribe_retry_delay = {{ .SubscribeRetryDelay }}
node_halted_timeout = {{ .NodeHaltedTimeout }}
poll_interval = {{ .PollInterval }}

server_port = {{ .ServerPort }}
`
