package chain

// registryABI covers the read-only surface of the job registry.
const registryABI = `[
  {
    "type": "function",
    "name": "jobCount",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "getJob",
    "stateMutability": "view",
    "inputs": [{"name": "jobId", "type": "uint256"}],
    "outputs": [
      {"name": "id", "type": "uint256"},
      {"name": "client", "type": "address"},
      {"name": "freelancer", "type": "address"},
      {"name": "status", "type": "uint8"},
      {"name": "budget", "type": "uint256"},
      {"name": "escrow", "type": "address"},
      {"name": "metadataURI", "type": "string"}
    ]
  }
]`
