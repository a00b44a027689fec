package systemd

// GatewayUnit returns the systemd unit for the proctoring gateway.
func GatewayUnit() string {
	return `[Unit]
Description=proveit-proctor assessment gateway
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=/usr/local/bin/proveit-proctor serve --policy /etc/proveit-proctor/policy.yaml --audit-log /var/lib/proveit-proctor/audit.jsonl --archive /var/lib/proveit-proctor/archive.db
Restart=on-failure
RestartSec=2
StateDirectory=proveit-proctor
NoNewPrivileges=true
PrivateTmp=true
ProtectSystem=strict
ProtectHome=true

[Install]
WantedBy=multi-user.target
`
}
