package catalog

func builtinModels() []Model {
	return []Model{
		// free tier
		{ID: "meta-llama/llama-4-maverick:free", DisplayName: "Llama 4 Maverick", Provider: "Meta", ContextSize: "256K", IsFree: true, Multimodal: true},
		{ID: "meta-llama/llama-4-scout:free", DisplayName: "Llama 4 Scout", Provider: "Meta", ContextSize: "512K", IsFree: true, Multimodal: true},
		{ID: "meta-llama/llama-3.1-8b-instruct:free", DisplayName: "Llama 3.1 8B Instruct", Provider: "Meta", ContextSize: "128K", IsFree: true},
		{ID: "meta-llama/llama-3.2-3b-instruct:free", DisplayName: "Llama 3.2 3B Instruct", Provider: "Meta", ContextSize: "128K", IsFree: true},
		{ID: "meta-llama/llama-3.2-1b-instruct:free", DisplayName: "Llama 3.2 1B Instruct", Provider: "Meta", ContextSize: "128K", IsFree: true},
		{ID: "google/gemini-2.5-pro-exp-03-25:free", DisplayName: "Gemini 2.5 Pro Experimental", Provider: "Google", ContextSize: "1M", IsFree: true, Multimodal: true},
		{ID: "qwen/qwen3-30b-a3b:free", DisplayName: "Qwen3 30B A3B", Provider: "Qwen", ContextSize: "131K", IsFree: true},
		{ID: "qwen/qwen3-14b:free", DisplayName: "Qwen3 14B", Provider: "Qwen", ContextSize: "131K", IsFree: true},
		{ID: "qwen/qwen3-4b:free", DisplayName: "Qwen3 4B", Provider: "Qwen", ContextSize: "128K", IsFree: true},
		{ID: "qwen/qwen2.5-vl-3b-instruct:free", DisplayName: "Qwen2.5 VL 3B", Provider: "Qwen", ContextSize: "32K", IsFree: true, Multimodal: true},
		{ID: "deepseek/deepseek-v3-base:free", DisplayName: "DeepSeek V3 Base", Provider: "DeepSeek", ContextSize: "64K", IsFree: true},
		{ID: "deepseek/deepseek-chat-v3-0324:free", DisplayName: "DeepSeek Chat V3", Provider: "DeepSeek", ContextSize: "64K", IsFree: true},
		{ID: "deepseek/deepseek-r1-zero:free", DisplayName: "DeepSeek R1 Zero", Provider: "DeepSeek", ContextSize: "64K", IsFree: true, Description: "Reasoning model"},
		{ID: "mistralai/mistral-small-3.1-24b-instruct:free", DisplayName: "Mistral Small 3.1 24B", Provider: "Mistral", ContextSize: "96K", IsFree: true, Multimodal: true},
		{ID: "openrouter/optimus-alpha:free", DisplayName: "Optimus Alpha", Provider: "OpenRouter", ContextSize: "32K", IsFree: true},
		{ID: "openrouter/quasar-alpha:free", DisplayName: "Quasar Alpha", Provider: "OpenRouter", ContextSize: "32K", IsFree: true},
		{ID: "nvidia/llama-3.1-nemotron-nano-8b-v1:free", DisplayName: "Llama 3.1 Nemotron Nano 8B", Provider: "NVIDIA", ContextSize: "8K", IsFree: true},
		{ID: "nousresearch/deephermes-3-llama-3-8b-preview:free", DisplayName: "DeepHermes 3 Llama 3 8B", Provider: "Nous Research", ContextSize: "8K", IsFree: true},
		{ID: "moonshotai/kimi-vl-a3b-thinking:free", DisplayName: "Kimi VL A3B Thinking", Provider: "MoonShot", ContextSize: "131K", IsFree: true, Multimodal: true},

		// premium
		{ID: "openai/gpt-4o", DisplayName: "GPT-4o", Provider: "OpenAI", ContextSize: "128K", Multimodal: true},
		{ID: "openai/gpt-4o-mini", DisplayName: "GPT-4o Mini", Provider: "OpenAI", ContextSize: "128K", Multimodal: true},
		{ID: "openai/gpt-4-turbo", DisplayName: "GPT-4 Turbo", Provider: "OpenAI", ContextSize: "128K", Multimodal: true},
		{ID: "openai/o1", DisplayName: "GPT-o1", Provider: "OpenAI", ContextSize: "200K", Description: "Extended reasoning"},
		{ID: "openai/o1-mini", DisplayName: "GPT-o1 Mini", Provider: "OpenAI", ContextSize: "128K", Description: "Compact o1"},
		{ID: "anthropic/claude-3-opus", DisplayName: "Claude 3 Opus", Provider: "Anthropic", ContextSize: "200K", Multimodal: true},
		{ID: "anthropic/claude-3.5-sonnet", DisplayName: "Claude 3.5 Sonnet", Provider: "Anthropic", ContextSize: "200K", Multimodal: true},
		{ID: "anthropic/claude-3.5-haiku", DisplayName: "Claude 3.5 Haiku", Provider: "Anthropic", ContextSize: "200K", Multimodal: true},
		{ID: "anthropic/claude-3-sonnet", DisplayName: "Claude 3 Sonnet", Provider: "Anthropic", ContextSize: "200K", Multimodal: true},
		{ID: "anthropic/claude-3-haiku", DisplayName: "Claude 3 Haiku", Provider: "Anthropic", ContextSize: "200K", Multimodal: true},
		{ID: "google/gemini-pro-1.5", DisplayName: "Gemini Pro 1.5", Provider: "Google", ContextSize: "2M", Multimodal: true},
		{ID: "google/gemini-flash-1.5", DisplayName: "Gemini Flash 1.5", Provider: "Google", ContextSize: "1M", Multimodal: true},
		{ID: "google/gemini-flash-1.5-8b", DisplayName: "Gemini Flash 1.5 8B", Provider: "Google", ContextSize: "1M", Multimodal: true},
		{ID: "meta-llama/llama-3.3-70b-instruct", DisplayName: "Llama 3.3 70B Instruct", Provider: "Meta", ContextSize: "128K"},
		{ID: "meta-llama/llama-3.1-70b-instruct", DisplayName: "Llama 3.1 70B", Provider: "Meta", ContextSize: "128K"},
		{ID: "meta-llama/llama-3.1-8b-instruct", DisplayName: "Llama 3.1 8B", Provider: "Meta", ContextSize: "128K"},
		{ID: "mistralai/mistral-large", DisplayName: "Mistral Large", Provider: "Mistral", ContextSize: "128K"},
		{ID: "mistralai/mistral-medium", DisplayName: "Mistral Medium", Provider: "Mistral", ContextSize: "32K"},
		{ID: "mistralai/pixtral-12b", DisplayName: "Pixtral 12B", Provider: "Mistral", ContextSize: "128K", Multimodal: true},
		{ID: "cohere/command-r-plus", DisplayName: "Command R+", Provider: "Cohere", ContextSize: "128K"},
		{ID: "cohere/command-r", DisplayName: "Command R", Provider: "Cohere", ContextSize: "128K"},
		{ID: "x-ai/grok-2", DisplayName: "Grok 2", Provider: "X.AI", ContextSize: "131K", Multimodal: true},
		{ID: "x-ai/grok-2-mini", DisplayName: "Grok 2 Mini", Provider: "X.AI", ContextSize: "131K"},
		{ID: "perplexity/llama-3.1-sonar-large-128k-online", DisplayName: "Sonar Large Online", Provider: "Perplexity", ContextSize: "128K", Description: "Web access"},
		{ID: "perplexity/llama-3.1-sonar-small-128k-online", DisplayName: "Sonar Small Online", Provider: "Perplexity", ContextSize: "128K", Description: "Web access"},
	}
}
