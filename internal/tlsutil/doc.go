// 版权所有 2025 DebateFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 tlsutil 提供统一的 TLS 加固配置:TLS 1.2 起步,仅保留 AEAD
密码套件。

HTTPS 服务端(server.tls_cert / server.tls_key 配置齐备时)与
health 子命令的探针客户端共用这里的默认值,避免各处散落的
crypto/tls 字面量漂移出不一致的安全基线。
*/
package tlsutil
